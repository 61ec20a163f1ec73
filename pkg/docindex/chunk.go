package docindex

import "strings"

// chunkMarkdown scans src for headings, paragraphs, fenced code blocks, and
// pipe tables, then groups the resulting units into chunks no larger than
// maxChunkChars, never splitting a unit mid-item.
func chunkMarkdown(src string) []Chunk {
	units := scanUnits(src)
	return groupUnits(units)
}

type unit struct {
	text string
	typ  ChunkType
}

func scanUnits(src string) []unit {
	lines := strings.Split(src, "\n")
	var units []unit
	var para []string

	flushPara := func() {
		if len(para) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(para, "\n"))
		if text != "" {
			units = append(units, unit{text: text, typ: ChunkParagraph})
		}
		para = para[:0]
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "```"):
			flushPara()
			var code []string
			fence := trimmed
			i++
			for i < len(lines) && strings.TrimSpace(lines[i]) != "```" {
				code = append(code, lines[i])
				i++
			}
			units = append(units, unit{text: fence + "\n" + strings.Join(code, "\n") + "\n```", typ: ChunkCode})

		case strings.HasPrefix(trimmed, "#"):
			flushPara()
			if trimmed != "" {
				units = append(units, unit{text: trimmed, typ: ChunkHeading})
			}

		case isTableRow(trimmed):
			flushPara()
			var rows []string
			for i < len(lines) && isTableRow(strings.TrimSpace(lines[i])) {
				rows = append(rows, strings.TrimSpace(lines[i]))
				i++
			}
			i--
			units = append(units, unit{text: strings.Join(rows, "\n"), typ: ChunkTable})

		case trimmed == "":
			flushPara()

		default:
			para = append(para, line)
		}
	}
	flushPara()
	return units
}

func isTableRow(line string) bool {
	return strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") && len(line) > 1
}

// groupUnits packs consecutive units of the same type into chunks up to
// maxChunkChars, so each chunk's Type names the construct it holds. A
// single unit longer than the budget becomes its own chunk unsplit.
func groupUnits(units []unit) []Chunk {
	var chunks []Chunk
	var cur []string
	curLen := 0
	curType := ChunkParagraph

	flush := func() {
		if len(cur) == 0 {
			return
		}
		chunks = append(chunks, Chunk{Content: strings.Join(cur, "\n\n"), Type: curType})
		cur = cur[:0]
		curLen = 0
	}

	for _, u := range units {
		if curLen > 0 && (u.typ != curType || curLen+len(u.text)+2 > maxChunkChars) {
			flush()
		}
		if len(cur) == 0 {
			curType = u.typ
		}
		cur = append(cur, u.text)
		curLen += len(u.text) + 2
	}
	flush()
	return chunks
}
