// Package integrity implements the CRM data integrity engine.
//
// The engine has two independent entry points, both read-only:
//
//   - [Engine.ValidateImport] checks a spreadsheet import batch (customers,
//     contacts and payer relationships) against the live dataset and against
//     itself before anything is written.
//   - [Engine.Scan] and [Engine.Search] analyse the live dataset for duplicate
//     business keys, suspicious name/email collisions and missing relationships.
//
// # Import Validation
//
// A validation run builds a fresh [ReferenceIndex] from the [RecordStore],
// collects the business keys of customers created in the same batch, and then
// runs the three sheet validators:
//
//  1. [ValidateCustomers] checks action, name, category, type group and
//     business-key uniqueness.
//  2. [ValidateContacts] checks required fields, contact type, Voyado ID
//     uniqueness, linked customers and email reuse.
//  3. [ValidatePayers] checks both ends of every payer edge and runs
//     [DetectPayerCycles] over the resulting graph.
//
// Every issue carries a row number, field, entity key and severity. Rows with
// any ERROR count only under RowsWithErrors; warnings never block. The single
// gate for the import executor is [ValidationResult.CanImport].
//
// # Scanning
//
// The scanner groups records by exact field value and reports every group of
// two or more records as a [DuplicateGroup]. Severity is fixed per
// [DuplicateType]: collisions on external identifiers are errors, collisions
// on names and emails are warnings. Completeness rules (schools without a
// payer, teachers without an active school) are reported as [AnomalyItem]s.
//
// # Error Handling
//
// Findings are data, never Go errors. A non-nil error from the engine always
// means the record store could not be read; there is no degraded mode.
// Infrastructure errors can be turned into user-facing messages with
// [MapError].
package integrity
