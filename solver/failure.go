// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/python-poetry/poetry-sub004/versions"
)

// SolveFailureError is the terminal outcome of an unsatisfiable solve. It
// carries the root incompatibility of the derivation graph; Error()
// renders the graph bottom-up into a deterministic narrative.
type SolveFailureError struct {
	incompatibility *Incompatibility
}

// Incompatibility returns the root of the derivation graph.
func (e *SolveFailureError) Incompatibility() *Incompatibility {
	return e.incompatibility
}

func (e *SolveFailureError) Error() string {
	w := newFailureWriter(e.incompatibility)
	return w.write()
}

// failureWriter linearizes an incompatibility derivation graph into
// numbered prose. Incompatibilities referenced more than once get a line
// number so later steps can cite them.
type failureWriter struct {
	root        *Incompatibility
	derivations map[*Incompatibility]int

	lines       []failureLine
	lineNumbers map[*Incompatibility]int
}

type failureLine struct {
	message string
	number  int // 0 means unnumbered
}

func newFailureWriter(root *Incompatibility) *failureWriter {
	w := &failureWriter{
		root:        root,
		derivations: map[*Incompatibility]int{},
		lineNumbers: map[*Incompatibility]int{},
	}
	w.countDerivations(root)
	return w
}

func (w *failureWriter) write() string {
	var buf bytes.Buffer

	pythonNotified := false
	w.root.externalIncompatibilities(func(inc *Incompatibility) {
		cause, ok := inc.Cause().(PythonCause)
		if !ok {
			return
		}
		if !pythonNotified {
			fmt.Fprintf(&buf,
				"The current project's supported Python range (%s) is not compatible"+
					" with some of the required packages Python requirement:\n",
				cause.RootPythonVersion)
			pythonNotified = true
		}
		rootConstraint := versions.MustParse(cause.RootPythonVersion)
		constraint := versions.MustParse(cause.PythonVersion)
		fmt.Fprintf(&buf, "  - %s requires Python %s, so it will not be satisfied for Python %s\n",
			inc.Terms()[0].Dependency().Name(), cause.PythonVersion,
			rootConstraint.Difference(constraint))
	})
	if pythonNotified {
		buf.WriteByte('\n')
	}

	if _, ok := w.root.Cause().(ConflictCause); ok {
		w.visit(w.root, false)
	} else {
		w.writeLine(w.root, fmt.Sprintf("Because %s, version solving failed.", w.root), false)
	}

	padding := 0
	if len(w.lineNumbers) > 0 {
		last := 0
		for _, n := range w.lineNumbers {
			if n > last {
				last = n
			}
		}
		padding = len(fmt.Sprintf("(%d) ", last))
	}

	var out []string
	lastWasEmpty := false
	for _, line := range w.lines {
		if line.message == "" {
			if !lastWasEmpty {
				out = append(out, "")
			}
			lastWasEmpty = true
			continue
		}
		lastWasEmpty = false

		message := line.message
		if line.number != 0 {
			tag := fmt.Sprintf("(%d)", line.number)
			message = tag + strings.Repeat(" ", padding-len(tag)) + message
		} else {
			message = strings.Repeat(" ", padding) + message
		}
		out = append(out, message)
	}

	buf.WriteString(strings.Join(out, "\n"))
	return buf.String()
}

func (w *failureWriter) writeLine(inc *Incompatibility, message string, numbered bool) {
	if numbered {
		number := len(w.lineNumbers) + 1
		w.lineNumbers[inc] = number
		w.lines = append(w.lines, failureLine{message: message, number: number})
		return
	}
	w.lines = append(w.lines, failureLine{message: message})
}

func (w *failureWriter) visit(inc *Incompatibility, conclusion bool) {
	numbered := conclusion || w.derivations[inc] > 1
	conjunction := "And"
	if conclusion || inc == w.root {
		conjunction = "So,"
	}
	incString := inc.String()

	cause, ok := inc.Cause().(ConflictCause)
	if !ok {
		panic("visit called on a non-derived incompatibility")
	}
	_, conflictDerived := cause.Conflict.Cause().(ConflictCause)
	_, otherDerived := cause.Other.Cause().(ConflictCause)

	switch {
	case conflictDerived && otherDerived:
		conflictLine, haveConflictLine := w.lineNumbers[cause.Conflict]
		otherLine, haveOtherLine := w.lineNumbers[cause.Other]

		switch {
		case haveConflictLine && haveOtherLine:
			reason := cause.Conflict.andToString(cause.Other, conflictLine, otherLine)
			w.writeLine(inc, fmt.Sprintf("Because %s, %s.", reason, incString), numbered)

		case haveConflictLine || haveOtherLine:
			withLine, withoutLine := cause.Conflict, cause.Other
			line := conflictLine
			if haveOtherLine {
				withLine, withoutLine = cause.Other, cause.Conflict
				line = otherLine
			}
			w.visit(withoutLine, false)
			w.writeLine(inc, fmt.Sprintf("%s because %s (%d), %s.",
				conjunction, withLine, line, incString), numbered)

		default:
			singleLineConflict := w.isSingleLine(cause.Conflict)
			singleLineOther := w.isSingleLine(cause.Other)
			if singleLineOther || singleLineConflict {
				first, second := cause.Other, cause.Conflict
				if singleLineOther {
					first, second = cause.Conflict, cause.Other
				}
				w.visit(first, false)
				w.visit(second, false)
				w.writeLine(inc, fmt.Sprintf("Thus, %s.", incString), numbered)
			} else {
				w.visit(cause.Conflict, true)
				w.lines = append(w.lines, failureLine{})
				w.visit(cause.Other, false)
				w.writeLine(inc, fmt.Sprintf("%s because %s (%d), %s",
					conjunction, cause.Conflict, w.lineNumbers[cause.Conflict], incString), numbered)
			}
		}

	case conflictDerived || otherDerived:
		derived, ext := cause.Conflict, cause.Other
		if otherDerived {
			derived, ext = cause.Other, cause.Conflict
		}

		if derivedLine, ok := w.lineNumbers[derived]; ok {
			reason := ext.andToString(derived, 0, derivedLine)
			w.writeLine(inc, fmt.Sprintf("Because %s, %s.", reason, incString), numbered)
		} else if w.isCollapsible(derived) {
			derivedCause := derived.Cause().(ConflictCause)
			collapsedDerived, collapsedExt := derivedCause.Conflict, derivedCause.Other
			if _, ok := derivedCause.Other.Cause().(ConflictCause); ok {
				collapsedDerived, collapsedExt = derivedCause.Other, derivedCause.Conflict
			}
			w.visit(collapsedDerived, false)
			reason := collapsedExt.andToString(ext, 0, 0)
			w.writeLine(inc, fmt.Sprintf("%s because %s, %s.", conjunction, reason, incString), numbered)
		} else {
			w.visit(derived, false)
			w.writeLine(inc, fmt.Sprintf("%s because %s, %s.", conjunction, ext, incString), numbered)
		}

	default:
		reason := cause.Conflict.andToString(cause.Other, 0, 0)
		w.writeLine(inc, fmt.Sprintf("Because %s, %s.", reason, incString), numbered)
	}
}

// isCollapsible reports whether a once-referenced derived incompatibility
// can be folded into its parent's sentence instead of getting lines of
// its own.
func (w *failureWriter) isCollapsible(inc *Incompatibility) bool {
	if w.derivations[inc] > 1 {
		return false
	}

	cause := inc.Cause().(ConflictCause)
	_, conflictDerived := cause.Conflict.Cause().(ConflictCause)
	_, otherDerived := cause.Other.Cause().(ConflictCause)
	if conflictDerived == otherDerived {
		return false
	}

	complex := cause.Conflict
	if otherDerived {
		complex = cause.Other
	}
	_, hasLine := w.lineNumbers[complex]
	return !hasLine
}

func (w *failureWriter) isSingleLine(inc *Incompatibility) bool {
	cause, ok := inc.Cause().(ConflictCause)
	if !ok {
		return false
	}
	_, conflictDerived := cause.Conflict.Cause().(ConflictCause)
	_, otherDerived := cause.Other.Cause().(ConflictCause)
	return !conflictDerived && !otherDerived
}

func (w *failureWriter) countDerivations(inc *Incompatibility) {
	if _, ok := w.derivations[inc]; ok {
		w.derivations[inc]++
		return
	}
	w.derivations[inc] = 1
	if cause, ok := inc.Cause().(ConflictCause); ok {
		w.countDerivations(cause.Conflict)
		w.countDerivations(cause.Other)
	}
}
