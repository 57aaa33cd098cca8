package bookmarks

import (
	"fmt"
	"html"
	"strings"
)

// Netscape bookmark file preamble, kept byte-compatible with what browsers
// emit so the pushed document imports cleanly everywhere.
const netscapeHeader = `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<!-- This is an automatically generated file.
     It will be read and overwritten.
     DO NOT EDIT! -->
<META HTTP-EQUIV="Content-Type" CONTENT="text/html; charset=UTF-8">
<TITLE>Bookmarks</TITLE>
<H1>Bookmarks</H1>
`

// Render produces a Netscape bookmark HTML document for the given forest.
func Render(roots []*Node) string {
	var b strings.Builder
	b.WriteString(netscapeHeader)
	b.WriteString("<DL><p>\n")
	for _, n := range roots {
		renderNode(&b, n, 1)
	}
	b.WriteString("</DL><p>\n")
	return b.String()
}

// RenderFlat produces a Netscape document for an explicitly ordered list of
// bookmarks, used by selective push. Folders are skipped; the caller decides
// the order.
func RenderFlat(nodes []*Node) string {
	var b strings.Builder
	b.WriteString(netscapeHeader)
	b.WriteString("<DL><p>\n")
	for _, n := range nodes {
		if n.IsFolder() {
			continue
		}
		writeBookmark(&b, n, 1)
	}
	b.WriteString("</DL><p>\n")
	return b.String()
}

func renderNode(b *strings.Builder, n *Node, depth int) {
	if n.IsFolder() {
		indent(b, depth)
		fmt.Fprintf(b, "<DT><H3 ADD_DATE=\"%d\">%s</H3>\n",
			n.DateAdded/1000, html.EscapeString(n.Title))
		indent(b, depth)
		b.WriteString("<DL><p>\n")
		for _, c := range n.Children {
			renderNode(b, c, depth+1)
		}
		indent(b, depth)
		b.WriteString("</DL><p>\n")
		return
	}
	writeBookmark(b, n, depth)
}

func writeBookmark(b *strings.Builder, n *Node, depth int) {
	indent(b, depth)
	fmt.Fprintf(b, "<DT><A HREF=\"%s\" ADD_DATE=\"%d\">%s</A>\n",
		html.EscapeString(n.URL), n.DateAdded/1000, html.EscapeString(n.Title))
}

func indent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("    ")
	}
}
