package persona

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/weibo-seed/internal/alias"
	"github.com/zhouzirui/weibo-seed/internal/dataset"
)

const maxSummaryTopics = 3

// Builder turns dataset records into profiles. It is stateless apart from
// the resolver and can be shared between goroutines.
type Builder struct {
	resolver *alias.Resolver
}

// NewBuilder binds a builder to resolver.
func NewBuilder(resolver *alias.Resolver) *Builder {
	return &Builder{resolver: resolver}
}

// Build derives the profile of one record. fallbackUsername is used when the
// record declares no usable username.
func (b *Builder) Build(record *dataset.Object, fallbackUsername string) Profile {
	r := b.resolver
	base := r.Section(record, alias.SectionBasicInfo, alias.SectionBasicInfoAlt)
	influence := r.Section(record, alias.SectionInfluence, alias.SectionInfluenceAlt)
	behavior := r.Section(record, alias.SectionBehavior)
	tags := r.Section(record, alias.SectionTags, alias.SectionTagsAlt)

	username := text(r.Field(base, nil, alias.FieldUsername), fallbackUsername)
	displayName := text(r.Field(base, username, alias.FieldNickname), username)
	bio := text(r.Field(base, DefaultBio, alias.FieldBio), DefaultBio)

	return Profile{
		DatasetID:   dataset.Stringify(r.DatasetID(record), ""),
		Username:    username,
		DisplayName: displayName,
		Bio:         bio,
		Summary:     b.summary(base, influence, behavior),
		Gender:      text(r.Field(base, Unknown, alias.FieldGender), Unknown),
		Age:         text(r.Field(behavior, Unknown, alias.FieldAge), Unknown),
		MBTI:        text(r.Field(tags, Unknown, alias.FieldMBTI), Unknown),
		Country:     text(r.Field(base, Unknown, alias.FieldRegion), Unknown),
		Raw:         record,
	}
}

// summary joins level, follower count and leading topic keywords, in that order.
func (b *Builder) summary(base, influence, behavior *dataset.Object) string {
	var parts []string

	if level := b.resolver.Field(base, nil, alias.FieldLevel); dataset.Truthy(level) {
		parts = append(parts, fmt.Sprintf("level: %s", dataset.Stringify(level, "")))
	}
	if followers := b.resolver.Field(influence, nil, alias.FieldFollowers); followers != nil {
		parts = append(parts, fmt.Sprintf("followers: %s", dataset.Stringify(followers, "")))
	}
	if keywords := behavior.Object(alias.KeyKeywords); keywords.Len() > 0 {
		topics := keywords.Keys()
		if len(topics) > maxSummaryTopics {
			topics = topics[:maxSummaryTopics]
		}
		parts = append(parts, fmt.Sprintf("topics: %s", strings.Join(topics, ", ")))
	}

	if len(parts) == 0 {
		return NoProfileSummary
	}
	return strings.Join(parts, "; ")
}

// text stringifies v, falling back to def for nil or blank values.
func text(v any, def string) string {
	if s := dataset.Stringify(v, ""); s != "" {
		return s
	}
	return def
}
