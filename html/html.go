// Package html builds the subset of HTML that Telegram accepts in messages
package html

import "strings"

var entitiesReplacer = strings.NewReplacer("<", "&lt;", ">", "&gt;", "&", "&amp;")

// EncodeEntities encodes '<', '>' and '&'. Telegram doesn't require anything else to be escaped
func EncodeEntities(s string) string {
	return entitiesReplacer.Replace(s)
}

// Fixed generates <code>text</code>
func Fixed(s string) string {
	return "<code>" + EncodeEntities(s) + "</code>"
}
