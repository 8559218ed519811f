// Package query parses raw search text into a storage-independent AST.
//
// Grammar:
//
//	walk rain        bare terms, implicit AND
//	"daily walk"     phrase, contiguous exact match
//	gard*            prefix match on the unstemmed word
//	-rain            exclude entries containing the term
//
// Parsing never fails. Syntax the grammar does not recognize degrades to
// literal text (or is dropped when it cannot be read literally) and sets
// Query.Sanitized. At most MaxTokens tokens are kept; the rest are dropped
// and Query.Truncated is set.
//
// The AST is consumed by a backend compiler (see internal/searchsql); it
// does not depend on any storage engine's native query syntax.
package query
