// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and the troubleshooting catalog.
//
// An ActionableError names the failed operation, the resource involved and
// suggested fixes. Failures with a catalog entry also point at the matching
// Markdown page, which `kpmd issue <name>` renders through glamour.
package issue
