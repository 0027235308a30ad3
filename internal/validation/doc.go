// Package validation runs batch data-quality checks over property records.
//
// A batch is submitted as a task on the task engine. The task fetches the
// properties selected by a filter, evaluates the rule set for the requested
// validation type in fixed-size chunks while reporting progress, appends a
// quality snapshot and optionally notifies the submitter. Rule predicates
// (required fields, code tables, parcel format, category lists) come from a
// RuleConfig document that is checked against an embedded JSON Schema.
package validation
