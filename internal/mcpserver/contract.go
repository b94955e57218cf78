package mcpserver

// FragmentFormatURI identifies the fragment format resource.
const FragmentFormatURI = "backlinks://fragment-format"

// FragmentFormat describes the Markdown block appended to every chapter that
// other chapters link to.
const FragmentFormat = `# Backlinks Fragment Format

A chapter with at least one incoming link gets this block appended to its
content, after exactly one blank line:

` + "```" + `markdown
---

 >
 > #### Backlinks
 >
 > * [index](../index.md)
 > * [ch1](../a/ch1.md)
 > * [ch3](ch3.md)
` + "```" + `

## Rules

1. **Links count** when they are inline, reference or autolinks with a path
   relative to the linking chapter. Links with a scheme or host, bare
   fragments and images do not count. Links inside code do not count.
2. **Targets** must be chapters of the book. Links to anything else are ignored.
3. **Entries** are ordered by section number (unnumbered chapters first,
   shorter prefixes before longer ones), then by name, then by path. The same
   chapter is listed once even if it links several times.
4. **Destinations** are relative to the directory of the chapter holding the
   block.
5. **Drafts** (chapters without a source file) neither give nor receive
   backlinks.
6. The heading text defaults to ` + "`" + `Backlinks` + "`" + ` and can be changed with
   ` + "`" + `heading` + "`" + ` under ` + "`" + `[preprocessor.backlinks]` + "`" + ` in book.toml.
`
