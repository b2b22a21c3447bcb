// Package secrets redacts credentials from text before it is persisted.
//
// Detection runs the gitleaks default rule set followed by a short list of
// assignment-style patterns that gitleaks deliberately leaves to entropy
// checks. Matches are replaced with [REDACTED:rule-id] markers. Project and
// user allowlists use the gitleaks TOML format.
package secrets
