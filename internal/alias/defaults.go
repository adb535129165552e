package alias

// Canonical section keys as they appear in a correctly encoded export.
const (
	SectionBasicInfo    = "个人基本信息"
	SectionBasicInfoAlt = "个人基础信息"
	SectionInfluence    = "社交影响力"
	SectionInfluenceAlt = "社会影响力"
	SectionBehavior     = "用户行为特征"
	SectionTags         = "标签特征"
	SectionTagsAlt      = "标签信息"
	SectionFollows      = "关注博主信息"
	SectionPosts        = "近期发帖内容分析"
)

// Canonical field keys.
const (
	FieldUsername  = "用户名"
	FieldNickname  = "用户昵称"
	FieldBio       = "用户简介"
	FieldGender    = "用户性别"
	FieldLevel     = "微博等级"
	FieldRegion    = "地区信息"
	FieldFollowers = "粉丝数量"
	FieldAge       = "年龄"
	FieldMBTI      = "MBTI"
	FieldDatasetID = "用户ID"
)

// Keys inside sections that are never mis-encoded in practice and are read directly.
const (
	KeyFollows  = "follows"
	KeyPosts    = "全部帖子合集"
	KeyKeywords = "keywords_list"
)

// The corrupted spellings come from exports whose GBK bytes were read as UTF-8;
// undecodable bytes became U+FFFD, the rest landed on unrelated code points.
var defaultSections = map[string][]string{
	SectionBasicInfo: {"个人基础信息", "���˻�����Ϣ"},
	SectionInfluence: {"社会影响力", "�罻Ӱ����"},
	SectionBehavior:  {"�û���Ϊ����"},
	SectionTags:      {"标签信息", "��ǩ����", "��ǩ��Ϣ"},
	SectionFollows:   {"��ע������Ϣ"},
	SectionPosts:     {"���ڷ������ݷ���"},
}

var defaultFields = map[string][]string{
	FieldUsername:  {"�û���"},
	FieldNickname:  {"�û��ǳ�"},
	FieldBio:       {"�û����"},
	FieldGender:    {"�û��Ա�"},
	FieldLevel:     {"΢���ȼ�"},
	FieldRegion:    {"������Ϣ"},
	FieldFollowers: {"��˿����"},
	FieldAge:       {"����"},
	FieldDatasetID: {"�û�ID"},
}

// DefaultTable returns the alias table for the known Weibo export spellings.
func DefaultTable() Table {
	return NewTable(defaultSections, defaultFields)
}
