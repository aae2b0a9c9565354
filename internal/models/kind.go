package models

// SourceKind is the closed enumeration of semantic page kinds. Exactly one
// value per document, chosen by priority: explicit content-type, then
// structured-data type, then URL/path heuristic, then embed metadata, then
// the generic fallback.
type SourceKind string

const (
	KindArticle      SourceKind = "article"
	KindNews         SourceKind = "news"
	KindVideo        SourceKind = "video"
	KindLive         SourceKind = "live"
	KindPodcast      SourceKind = "podcast"
	KindAudio        SourceKind = "audio"
	KindImage        SourceKind = "image"
	KindGallery      SourceKind = "gallery"
	KindDocument     SourceKind = "document"
	KindDocs         SourceKind = "docs"
	KindWiki         SourceKind = "wiki"
	KindSocial       SourceKind = "social"
	KindForum        SourceKind = "forum"
	KindRepo         SourceKind = "repo"
	KindPackage      SourceKind = "package"
	KindDataset      SourceKind = "dataset"
	KindPaper        SourceKind = "paper"
	KindBook         SourceKind = "book"
	KindCourse       SourceKind = "course"
	KindJob          SourceKind = "job"
	KindEvent        SourceKind = "event"
	KindRecipe       SourceKind = "recipe"
	KindProduct      SourceKind = "product"
	KindPricing      SourceKind = "pricing"
	KindSupport      SourceKind = "support"
	KindDownload     SourceKind = "download"
	KindMap          SourceKind = "map"
	KindTool         SourceKind = "tool"
	KindProfile      SourceKind = "profile"
	KindOrganization SourceKind = "organization"
	KindGeneric      SourceKind = "generic"
)
