// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package syncerrors defines the sync engine's error taxonomy (§7) and
// the aggregate reporter that combines per-bucket failures into one
// composite error at the end of a run.
package syncerrors

import (
	"fmt"
	"sort"
	"strings"
)

// taxonomyError is the shared shape behind every named error type: a
// human-readable message plus the aggregated errors that produced it.
type taxonomyError struct {
	kind       string
	msg        string
	Aggregated []error
}

func (e *taxonomyError) Error() string {
	if e.msg != "" {
		return fmt.Sprintf("%s: %s", e.kind, e.msg)
	}
	return e.kind
}

func (e *taxonomyError) Unwrap() []error { return e.Aggregated }

func newTaxonomyError(kind, msg string, aggregated ...error) error {
	return &taxonomyError{kind: kind, msg: msg, Aggregated: aggregated}
}

// Named error constructors, one per §7 taxonomy entry.
func NewSyncError(msg string, aggregated ...error) error {
	return newTaxonomyError("SyncError", msg, aggregated...)
}

func NewSyncFailFastError(msg string, aggregated ...error) error {
	return newTaxonomyError("SyncFailFastError", msg, aggregated...)
}

func NewSmartSyncError(msg string, aggregated ...error) error {
	return newTaxonomyError("SmartSyncError", msg, aggregated...)
}

func NewSuperprojectError(msg string, aggregated ...error) error {
	return newTaxonomyError("SuperprojectError", msg, aggregated...)
}

func NewUpdateManifestError(msg string, aggregated ...error) error {
	return newTaxonomyError("UpdateManifestError", msg, aggregated...)
}

func NewManifestInterruptError(msg string, aggregated ...error) error {
	return newTaxonomyError("ManifestInterruptError", msg, aggregated...)
}

func NewRepoChangedException(msg string, aggregated ...error) error {
	return newTaxonomyError("RepoChangedException", msg, aggregated...)
}

func NewRepoUnhandledExceptionError(msg string, aggregated ...error) error {
	return newTaxonomyError("RepoUnhandledExceptionError", msg, aggregated...)
}

func NewDeleteWorktreeError(msg string, aggregated ...error) error {
	return newTaxonomyError("DeleteWorktreeError", msg, aggregated...)
}

// Aggregate collects the per-bucket failures from one run and renders a
// single composite error, matching §4.12/§7's reporting contract: only
// non-empty buckets print a header, failing relpaths are sorted, and a
// fail-fast rerun is suggested.
type Aggregate struct {
	NetworkFailures   []string // failing relpaths
	CheckoutFailures  []string
	ProjectListErr    error
	CopyLinkFilesErr  error
	Generic           []error
	FailFast          bool
}

// HasFailures reports whether any bucket is non-empty.
func (a *Aggregate) HasFailures() bool {
	return len(a.NetworkFailures) > 0 ||
		len(a.CheckoutFailures) > 0 ||
		a.ProjectListErr != nil ||
		a.CopyLinkFilesErr != nil ||
		len(a.Generic) > 0
}

// Error renders the per-bucket summary text. Build wraps it in a
// SyncFailFastError when FailFast is set, otherwise in a SyncError.
func (a *Aggregate) Error() string {
	var b strings.Builder

	if len(a.NetworkFailures) > 0 {
		failing := append([]string(nil), a.NetworkFailures...)
		sort.Strings(failing)
		fmt.Fprintf(&b, "network sync failures (%d):\n", len(failing))
		for _, r := range failing {
			fmt.Fprintf(&b, "  %s\n", r)
		}
	}

	if len(a.CheckoutFailures) > 0 {
		failing := append([]string(nil), a.CheckoutFailures...)
		sort.Strings(failing)
		fmt.Fprintf(&b, "checkout failures (%d):\n", len(failing))
		for _, r := range failing {
			fmt.Fprintf(&b, "  %s\n", r)
		}
	}

	if a.ProjectListErr != nil {
		fmt.Fprintf(&b, "project list update failed: %v\n", a.ProjectListErr)
	}
	if a.CopyLinkFilesErr != nil {
		fmt.Fprintf(&b, "copy/link file update failed: %v\n", a.CopyLinkFilesErr)
	}
	for _, e := range a.Generic {
		fmt.Fprintf(&b, "error: %v\n", e)
	}

	b.WriteString("rerun with -j1 --fail-fast to isolate the first failure")
	return b.String()
}

// Build returns nil if the aggregate has no failures, otherwise a
// composite error of the appropriate taxonomy kind.
func (a *Aggregate) Build() error {
	if !a.HasFailures() {
		return nil
	}
	if a.FailFast {
		return NewSyncFailFastError(a.Error())
	}
	return NewSyncError(a.Error())
}
