/*
Copyright 2020 GramLabs, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package message implements the tagged, leveled diagnostic records that every
// analysis stage accumulates instead of returning (or throwing) a bare error.
package message

// Level is the severity of a Message. The three levels mirror the ones the
// analysis pipeline has always reported to callers: informational notes,
// degraded-but-continuing warnings, and hard failures of a single stage input.
type Level string

const (
	// Info records a normal, expected condition worth surfacing (e.g. constraints skipped).
	Info Level = "info"
	// Warning records a degraded condition: a value is missing or defaulted, but the
	// pipeline keeps going.
	Warning Level = "warning"
	// Error records a failure that invalidates part of the result (e.g. value is null).
	Error Level = "error"
)

// Message is a single diagnostic emitted by a pipeline stage.
type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// Messages is an ordered collection of Message values produced by one stage.
type Messages []Message

// Info appends an informational message.
func (m *Messages) Info(text string) {
	*m = append(*m, Message{Level: Info, Text: text})
}

// Warning appends a warning message.
func (m *Messages) Warning(text string) {
	*m = append(*m, Message{Level: Warning, Text: text})
}

// Error appends an error message.
func (m *Messages) Error(text string) {
	*m = append(*m, Message{Level: Error, Text: text})
}

// Append merges another Messages slice onto the receiver, preserving order.
func (m *Messages) Append(other Messages) {
	*m = append(*m, other...)
}

// HasErrors reports whether any message in the collection is at Error level.
func (m Messages) HasErrors() bool {
	for _, msg := range m {
		if msg.Level == Error {
			return true
		}
	}
	return false
}
