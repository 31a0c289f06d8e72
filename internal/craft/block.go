// Package craft talks to the Craft Connect API: it reads daily notes as
// block trees and writes generated documents back.
package craft

import (
	"bytes"
	"encoding/json"
)

// Block is a node of a Craft document tree.
type Block struct {
	ID       string  `json:"id,omitempty"`
	Markdown string  `json:"markdown,omitempty"`
	Content  []Block `json:"content,omitempty"`
}

// UnmarshalJSON decodes a block, ignoring a content field that is not an
// array. The block's own markdown is kept either way.
func (b *Block) UnmarshalJSON(data []byte) error {
	type plain Block
	var body struct {
		plain
		Content json.RawMessage `json:"content,omitempty"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	*b = Block(body.plain)
	b.Content = nil

	if raw := bytes.TrimSpace(body.Content); len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &b.Content); err != nil {
			return err
		}
	}
	return nil
}

// ExtractMarkdown flattens b depth-first: the block's own markdown followed
// by each child's extraction, each child on a new line.
func ExtractMarkdown(b Block) string {
	content := b.Markdown
	for _, child := range b.Content {
		content += "\n" + ExtractMarkdown(child)
	}
	return content
}
