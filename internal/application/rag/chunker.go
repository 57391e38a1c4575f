package rag

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"fin-research-api/internal/domain/entity"
)

var (
	paragraphSplitRe = regexp.MustCompile(`\n\s*\n`)
	tablePatternRe   = regexp.MustCompile(`(\|[^\n]+\|[\n\r]+)+`)
	numberPatternRe  = regexp.MustCompile(`R\$\s*[\d.,]+|[\d.,]+\s*%|\d{1,3}(?:\.\d{3})*(?:,\d+)?`)
	pageMarkerRe     = regexp.MustCompile(`(?i)(?:^|\n)(?:Página|Page|Pág\.?)\s*(\d+)`)
	spacesRe         = regexp.MustCompile(`[ \t]+`)
	blankLinesRe     = regexp.MustCompile(`\n{3,}`)
)

// 巴西财报常见的财务词汇，用于识别财务段落
var financialKeywords = []string{
	"ativo", "passivo", "patrimônio", "receita", "despesa",
	"lucro", "prejuízo", "ebitda", "dívida", "caixa", "fluxo",
}

// Chunker 文档切分器
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker 创建文档切分器
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// section 切分出的逻辑段落
type section struct {
	content     string
	pageNumber  int
	sectionType string
}

// ChunkDocument 将文档切分为带重叠的片段
// 片段索引在过滤后从 0 起连续分配
func (c *Chunker) ChunkDocument(documentID, text string, metadata map[string]string) []entity.DocumentChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	text = normalizeText(text)
	sections := splitIntoSections(text)

	var chunks []entity.DocumentChunk
	chunkIndex := 0

	for _, sec := range sections {
		sectionChunks := c.chunkSection(sec.content)
		// 噪声下限只作用于被切开的段落，完整段落原样保留
		applyFloor := len(sectionChunks) > 1
		for _, chunkText := range sectionChunks {
			if applyFloor && len(strings.TrimSpace(chunkText)) < MinChunkChars {
				continue
			}

			meta := cloneMetadata(metadata)
			meta["section_type"] = sec.sectionType
			meta["has_numbers"] = strconv.FormatBool(numberPatternRe.MatchString(chunkText))
			meta["char_count"] = strconv.Itoa(len(chunkText))

			chunks = append(chunks, entity.DocumentChunk{
				ChunkID:    uuid.NewString(),
				DocumentID: documentID,
				Content:    chunkText,
				PageNumber: sec.pageNumber,
				ChunkIndex: chunkIndex,
				Metadata:   meta,
			})
			chunkIndex++
		}
	}

	return chunks
}

// Table 外部抽取的表格数据
type Table struct {
	Markdown   string
	Data       [][]string
	PageNumber int
}

// ChunkWithTables 切分文档并保留外部抽取的表格
// 表格片段的索引接在主序列之后
func (c *Chunker) ChunkWithTables(documentID, text string, tables []Table, metadata map[string]string) []entity.DocumentChunk {
	chunks := c.ChunkDocument(documentID, text, metadata)

	for i, table := range tables {
		tableContent := formatTable(table)
		if tableContent == "" {
			continue
		}

		meta := cloneMetadata(metadata)
		meta["section_type"] = "table"
		meta["table_index"] = strconv.Itoa(i)
		meta["has_numbers"] = "true"

		chunks = append(chunks, entity.DocumentChunk{
			ChunkID:    uuid.NewString(),
			DocumentID: documentID,
			Content:    tableContent,
			PageNumber: table.PageNumber,
			ChunkIndex: len(chunks),
			Metadata:   meta,
		})
	}

	return chunks
}

// normalizeText 统一换行与空白
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = spacesRe.ReplaceAllString(text, " ")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// splitIntoSections 按页标记或空行段落切分
func splitIntoSections(text string) []section {
	var sections []section

	markers := pageMarkerRe.FindAllStringSubmatchIndex(text, -1)
	if len(markers) > 0 {
		currentPage := 1
		prev := 0
		emit := func(content string) {
			content = strings.TrimSpace(content)
			if content == "" {
				return
			}
			sections = append(sections, section{
				content:     content,
				pageNumber:  currentPage,
				sectionType: detectSectionType(content),
			})
		}

		for _, m := range markers {
			emit(text[prev:m[0]])
			if page, err := strconv.Atoi(text[m[2]:m[3]]); err == nil {
				currentPage = page
			}
			prev = m[1]
		}
		emit(text[prev:])
		return sections
	}

	for _, para := range paragraphSplitRe.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		sections = append(sections, section{
			content:     para,
			sectionType: detectSectionType(para),
		})
	}
	return sections
}

// detectSectionType 通过轻量启发式识别段落类型
func detectSectionType(text string) string {
	if tablePatternRe.MatchString(text) {
		return "table"
	}

	lower := strings.ToLower(text)
	for _, kw := range financialKeywords {
		if strings.Contains(lower, kw) {
			return "financial"
		}
	}

	trimmed := strings.TrimSpace(text)
	if isAllUpper(trimmed) && len(trimmed) < 100 {
		return "header"
	}

	return "text"
}

// isAllUpper 检查文本包含字母且无小写字母
func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// chunkSection 将段落按句子贪心打包为带重叠的窗口
func (c *Chunker) chunkSection(text string) []string {
	if len(text) <= c.chunkSize {
		return []string{text}
	}

	sentences := splitSentences(text)
	var chunks []string
	var current []string
	currentLength := 0

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		sentenceLength := len(sentence)

		if currentLength+sentenceLength > c.chunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))

			// 从已打包句子尾部回溯构建重叠窗口
			overlapText := strings.Join(current, " ")
			if len(overlapText) > c.chunkOverlap {
				var overlap []string
				overlapLength := 0
				for i := len(current) - 1; i >= 0; i-- {
					if overlapLength+len(current[i]) > c.chunkOverlap {
						break
					}
					overlap = append([]string{current[i]}, overlap...)
					overlapLength += len(current[i])
				}
				current = overlap
				currentLength = overlapLength
			} else {
				current = nil
				currentLength = 0
			}
		}

		current = append(current, sentence)
		currentLength += sentenceLength
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks
}

// splitSentences 在句末标点后的空白处切分句子
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '.' || r == '!' || r == '?' {
			j := i + 1
			if j < len(runes) && unicode.IsSpace(runes[j]) {
				sentences = append(sentences, string(runes[start:j]))
				for j < len(runes) && unicode.IsSpace(runes[j]) {
					j++
				}
				start = j
				i = j - 1
			}
		}
	}

	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}

// formatTable 将表格数据渲染为文本
func formatTable(table Table) string {
	if table.Markdown != "" {
		return table.Markdown
	}

	if len(table.Data) == 0 {
		return ""
	}

	lines := make([]string, 0, len(table.Data))
	for _, row := range table.Data {
		lines = append(lines, strings.Join(row, " | "))
	}
	return strings.Join(lines, "\n")
}

// cloneMetadata 复制元数据映射，避免片段间共享
func cloneMetadata(metadata map[string]string) map[string]string {
	meta := make(map[string]string, len(metadata)+3)
	for k, v := range metadata {
		meta[k] = v
	}
	return meta
}
