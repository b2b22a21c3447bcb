package constraint

import (
	"bufio"
	"strings"
)

// Document is one policy file split into its enforceable body and the
// keyword section used only for classification.
type Document struct {
	Domain   Domain
	Body     string
	Keywords []string
}

// ParseDocument splits raw at the first line equal to header (case-insensitive).
// Lines after the header are comma-separated keywords; blank lines and lines
// starting with '#' are ignored. Keywords are lowercased and de-duplicated,
// keeping first-seen order.
func ParseDocument(domain Domain, raw, header string) Document {
	doc := Document{Domain: domain}
	header = strings.TrimSpace(header)

	var body strings.Builder
	inKeywords := false
	seen := make(map[string]bool)

	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)

		if !inKeywords {
			if header != "" && strings.EqualFold(trimmed, header) {
				inKeywords = true
				continue
			}
			body.WriteString(line)
			body.WriteByte('\n')
			continue
		}

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		for _, kw := range strings.Split(trimmed, ",") {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" || seen[kw] {
				continue
			}
			seen[kw] = true
			doc.Keywords = append(doc.Keywords, kw)
		}
	}

	doc.Body = strings.TrimRight(body.String(), "\n \t")
	return doc
}
