package mcpserver

// PageFormatContract describes the outline page format that LLM consumers
// should follow when writing pages, and how todos are tagged.
const PageFormatContract = `# Outline Page Format

A graph is two directories of UTF-8 text files: ` + "`pages/`" + ` holds user pages and
` + "`journals/`" + ` holds journal pages. The file stem is the page name; names containing
"/" are stored path-escaped (` + "`area%2Fhome.md`" + `).

## Blocks

` + "```" + `markdown
- [[Project X]]
  - [ ] draft the plan
  - [x] kickoff meeting
    notes continue the block on the next line
- [ ] loose task
` + "```" + `

1. Every block starts with ` + "`- `" + ` (a bare ` + "`-`" + ` is an empty block).
2. Depth is indentation: one tab or two spaces per level.
3. Lines that do not start a bullet continue the previous block.
4. Optional YAML frontmatter between ` + "`---`" + ` fences may precede the first block.

## Tokens

- ` + "`[[Name]]`" + ` links to the user page Name. ` + "`[[Name|alias]]`" + ` shows alias.
- ` + "`[[journal/2024_01_15]]`" + ` links to a journal page.
- ` + "`{query: ...}`" + ` is a query; it is not a tag.
- A block is a todo when its first line starts with ` + "`[ ]`" + ` (open) or
  ` + "`[x]`" + ` (done). Any single character other than a space in the brackets
  counts as done.

## Tags

A todo is tagged with its own page name, then every page linked by the todo
block and by each ancestor block, outermost first, without duplicates. In the
example above "draft the plan" carries the tags [page, Project X].
`
