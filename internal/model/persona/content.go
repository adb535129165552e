package persona

import (
	"regexp"
	"strings"

	"github.com/zhouzirui/weibo-seed/internal/alias"
	"github.com/zhouzirui/weibo-seed/internal/dataset"
)

var reHTMLTag = regexp.MustCompile(`<[^>]+>`)

// entityReplacer decodes the handful of entities Weibo exports leave behind.
var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&amp;", "&",
)

// CleanPost strips HTML-like tags, decodes common entities and trims the result.
func CleanPost(raw string) string {
	cleaned := reHTMLTag.ReplaceAllString(raw, "")
	return strings.TrimSpace(entityReplacer.Replace(cleaned))
}

// FollowTargets returns the dataset ids listed in the record's follow section,
// in file order. ok is false when the follow list is missing or not a mapping.
func FollowTargets(r *alias.Resolver, record *dataset.Object) (targets []string, ok bool) {
	follows := r.Section(record, alias.SectionFollows).Object(alias.KeyFollows)
	if follows == nil {
		return nil, false
	}
	targets = make([]string, 0, follows.Len())
	for _, key := range follows.Keys() {
		targets = append(targets, strings.TrimSpace(key))
	}
	return targets, true
}

// Posts returns the record's historical post entries as raw strings.
// Non-string entries are stringified; ok is false when no list is present.
func Posts(r *alias.Resolver, record *dataset.Object) (posts []string, ok bool) {
	v, _ := r.Section(record, alias.SectionPosts).Get(alias.KeyPosts)
	list, isList := v.([]any)
	if !isList {
		return nil, false
	}
	posts = make([]string, 0, len(list))
	for _, item := range list {
		posts = append(posts, dataset.Stringify(item, ""))
	}
	return posts, true
}
