// Package results turns ranked search hits into rendered result rows.
//
// A [Presenter] resolves every hit to its page record, cuts a context
// snippet around the matched words and renders one row per hit into a
// results container of the content tree. Two presentation modes share the
// same algorithm:
//
//   - [ModePanel]: the inline results panel. Rows are anchors carrying a
//     breadcrumb and a ten word context window.
//   - [ModeSuggestion]: autocomplete suggestions. Rows are plain divs with a
//     two word context window and a data-uri attribute.
//
// A hint element shows the number of results, or a "no results" message
// when a non-empty query matched nothing. An empty query clears both the
// results and the hint.
//
// Missing containers are ignored: themes are free to omit the hint or the
// results element.
package results
