// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Besides the Must* filesystem helpers it builds FakeHelper, a shell script
// standing in for the kpmmgr helper in end-to-end tests.
package testutil
