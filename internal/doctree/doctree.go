package doctree

// Kind identifies a node variant. The set is closed.
type Kind int

const (
	KindDocument Kind = iota

	// Block-level.
	KindHeading
	KindParagraph
	KindList
	KindListItem
	KindTable
	KindTableRow
	KindTableCell
	KindCodeBlock
	KindBlockQuote
	KindThematicBreak
	KindDefinitionList
	KindFootnoteDefinition
	KindRawBlock

	// Inline-level.
	KindText
	KindStrong
	KindEmphasis
	KindUnderline
	KindStrikethrough
	KindSubscript
	KindSuperscript
	KindLink
	KindImage
	KindCode
	KindLineBreak
	KindFootnoteReference
	KindInlineMath
	KindRawInline

	kindCount
)

var kindNames = [kindCount]string{
	KindDocument:           "document",
	KindHeading:            "heading",
	KindParagraph:          "paragraph",
	KindList:               "list",
	KindListItem:           "list_item",
	KindTable:              "table",
	KindTableRow:           "table_row",
	KindTableCell:          "table_cell",
	KindCodeBlock:          "code_block",
	KindBlockQuote:         "block_quote",
	KindThematicBreak:      "thematic_break",
	KindDefinitionList:     "definition_list",
	KindFootnoteDefinition: "footnote_definition",
	KindRawBlock:           "raw_block",
	KindText:               "text",
	KindStrong:             "strong",
	KindEmphasis:           "emphasis",
	KindUnderline:          "underline",
	KindStrikethrough:      "strikethrough",
	KindSubscript:          "subscript",
	KindSuperscript:        "superscript",
	KindLink:               "link",
	KindImage:              "image",
	KindCode:               "code",
	KindLineBreak:          "line_break",
	KindFootnoteReference:  "footnote_reference",
	KindInlineMath:         "inline_math",
	KindRawInline:          "raw_inline",
}

// String returns the snake_case name used for hook keys.
func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return "unknown"
	}
	return kindNames[k]
}

// IsBlock reports whether k is a block-level kind.
func (k Kind) IsBlock() bool { return k > KindDocument && k < KindText }

// IsInline reports whether k is an inline-level kind.
func (k Kind) IsInline() bool { return k >= KindText && k < kindCount }

// ParseKind looks up a kind by its snake_case name.
func ParseKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return 0, false
}

// Kinds returns every node kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := KindDocument; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// SourceLocation records where a node came from. The pipeline never interprets it.
type SourceLocation struct {
	Format    string // Originating format, e.g. "pdf" or "markdown"
	Page      int    // 1-based page (0 if N/A)
	Line      int    // 1-based line (0 if N/A)
	ElementID string // Format-specific element identifier
}

// Base carries the fields shared by every node.
type Base struct {
	Metadata map[string]any
	Source   *SourceLocation
}

// Common returns the shared node fields.
func (b *Base) Common() *Base { return b }

func (b *Base) node() {}

// Node is implemented only by the node types in this package.
type Node interface {
	Kind() Kind
	Common() *Base
	node()
}

// Document is the root of a tree.
type Document struct {
	Base
	Children []Node
}

// Heading is a section heading with a level between 1 and 6.
type Heading struct {
	Base
	Level    int
	Children []Node
}

// Paragraph is a block of inline content.
type Paragraph struct {
	Base
	Children []Node
}

// List is an ordered or bulleted list. Start is the first number of an ordered list.
type List struct {
	Base
	Ordered bool
	Start   int
	Tight   bool
	Items   []*ListItem
}

// ListItem is one entry of a List.
type ListItem struct {
	Base
	Checked  *bool // nil unless the item is a task
	Children []Node
}

// Table is a grid of rows; header rows come first.
type Table struct {
	Base
	Caption string
	Rows    []*TableRow
}

// TableRow is one row of a Table.
type TableRow struct {
	Base
	Header bool
	Cells  []*TableCell
}

// Alignment is a table cell's horizontal alignment.
type Alignment string

const (
	AlignNone   Alignment = ""
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// TableCell is one cell of a TableRow.
type TableCell struct {
	Base
	Align    Alignment
	Children []Node
}

// CodeBlock is preformatted code with an optional language tag.
type CodeBlock struct {
	Base
	Language string
	Content  string
}

// BlockQuote is quoted block content.
type BlockQuote struct {
	Base
	Children []Node
}

// ThematicBreak is a horizontal rule.
type ThematicBreak struct {
	Base
}

// DefinitionItem pairs a term with its descriptions. Term may be nil.
type DefinitionItem struct {
	Term         Node
	Descriptions []Node
}

// DefinitionList is a list of terms and their descriptions.
type DefinitionList struct {
	Base
	Items []DefinitionItem
}

// FootnoteDefinition is the body of a footnote referenced by Label.
type FootnoteDefinition struct {
	Base
	Label    string
	Children []Node
}

// RawBlock holds content in a specific output format, passed through verbatim.
type RawBlock struct {
	Base
	Format  string
	Content string
}

// Text is a run of plain text.
type Text struct {
	Base
	Content string
}

// Strong is strongly emphasized inline content.
type Strong struct {
	Base
	Children []Node
}

// Emphasis is emphasized inline content.
type Emphasis struct {
	Base
	Children []Node
}

// Underline is underlined inline content.
type Underline struct {
	Base
	Children []Node
}

// Strikethrough is struck-out inline content.
type Strikethrough struct {
	Base
	Children []Node
}

// Subscript is subscript inline content.
type Subscript struct {
	Base
	Children []Node
}

// Superscript is superscript inline content.
type Superscript struct {
	Base
	Children []Node
}

// Link is a hyperlink around inline content.
type Link struct {
	Base
	URL      string
	Title    string
	Children []Node
}

// Image is an inline image.
type Image struct {
	Base
	URL   string
	Alt   string
	Title string
}

// Code is an inline code span.
type Code struct {
	Base
	Content string
}

// LineBreak is a hard line break, or a soft one when Soft is set.
type LineBreak struct {
	Base
	Soft bool
}

// FootnoteReference points at the FootnoteDefinition with the same Label.
type FootnoteReference struct {
	Base
	Label string
}

// InlineMath is an inline math expression in source form.
type InlineMath struct {
	Base
	Content string
}

// RawInline is inline content in a specific output format, passed through verbatim.
type RawInline struct {
	Base
	Format  string
	Content string
}

func (*Document) Kind() Kind           { return KindDocument }
func (*Heading) Kind() Kind            { return KindHeading }
func (*Paragraph) Kind() Kind          { return KindParagraph }
func (*List) Kind() Kind               { return KindList }
func (*ListItem) Kind() Kind           { return KindListItem }
func (*Table) Kind() Kind              { return KindTable }
func (*TableRow) Kind() Kind           { return KindTableRow }
func (*TableCell) Kind() Kind          { return KindTableCell }
func (*CodeBlock) Kind() Kind          { return KindCodeBlock }
func (*BlockQuote) Kind() Kind         { return KindBlockQuote }
func (*ThematicBreak) Kind() Kind      { return KindThematicBreak }
func (*DefinitionList) Kind() Kind     { return KindDefinitionList }
func (*FootnoteDefinition) Kind() Kind { return KindFootnoteDefinition }
func (*RawBlock) Kind() Kind           { return KindRawBlock }
func (*Text) Kind() Kind               { return KindText }
func (*Strong) Kind() Kind             { return KindStrong }
func (*Emphasis) Kind() Kind           { return KindEmphasis }
func (*Underline) Kind() Kind          { return KindUnderline }
func (*Strikethrough) Kind() Kind      { return KindStrikethrough }
func (*Subscript) Kind() Kind          { return KindSubscript }
func (*Superscript) Kind() Kind        { return KindSuperscript }
func (*Link) Kind() Kind               { return KindLink }
func (*Image) Kind() Kind              { return KindImage }
func (*Code) Kind() Kind               { return KindCode }
func (*LineBreak) Kind() Kind          { return KindLineBreak }
func (*FootnoteReference) Kind() Kind  { return KindFootnoteReference }
func (*InlineMath) Kind() Kind         { return KindInlineMath }
func (*RawInline) Kind() Kind          { return KindRawInline }

// Meta returns a metadata value of n, or nil.
func Meta(n Node, key string) any {
	if n == nil {
		return nil
	}
	return n.Common().Metadata[key]
}

// SetMeta stores a metadata value on n, allocating the map if needed.
func SetMeta(n Node, key string, value any) {
	b := n.Common()
	if b.Metadata == nil {
		b.Metadata = make(map[string]any)
	}
	b.Metadata[key] = value
}
