// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

// Package catalog implements the core aggregation and resolution logic
// of PocketTV: merging remote media catalogs and permission sets,
// deriving live/VOD scheduling state, resolving per-item authorization
// against wallet ownership (including entitlement subsumption), and
// filtering/sorting the merged catalog for display.
//
// Everything in this package is a pure function over already-fetched
// documents. Fetching lives in internal/fabric and internal/wallet;
// session state lives in internal/pocket. Absent cross-references
// (unknown permission IDs, missing marketplace SKUs) are treated as
// "no access", never as errors.
package catalog
