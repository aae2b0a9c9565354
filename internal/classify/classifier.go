package classify

import (
	"net/url"
	"regexp"
	"strings"

	"verity-ai-gateway/internal/models"
)

// structured-data @type values mapped to kinds, checked before URL shape
var structuredTypeKinds = map[string]models.SourceKind{
	"newsarticle":        models.KindNews,
	"reportagenewsarticle": models.KindNews,
	"article":            models.KindArticle,
	"blogposting":        models.KindArticle,
	"techarticle":        models.KindArticle,
	"scholarlyarticle":   models.KindPaper,
	"videoobject":        models.KindVideo,
	"broadcastevent":     models.KindLive,
	"podcastepisode":     models.KindPodcast,
	"podcastseries":      models.KindPodcast,
	"audioobject":        models.KindAudio,
	"imageobject":        models.KindImage,
	"imagegallery":       models.KindGallery,
	"jobposting":         models.KindJob,
	"event":              models.KindEvent,
	"recipe":             models.KindRecipe,
	"product":            models.KindProduct,
	"offer":              models.KindProduct,
	"dataset":            models.KindDataset,
	"book":               models.KindBook,
	"course":             models.KindCourse,
	"softwareapplication": models.KindTool,
	"softwaresourcecode": models.KindRepo,
	"person":             models.KindProfile,
	"profilepage":        models.KindProfile,
	"organization":       models.KindOrganization,
	"localbusiness":      models.KindOrganization,
	"faqpage":            models.KindSupport,
	"map":                models.KindMap,
}

type hostRule struct {
	pattern *regexp.Regexp
	kind    models.SourceKind
}

var hostRules = []hostRule{
	{regexp.MustCompile(`(^|\.)(youtube\.com|youtu\.be|vimeo\.com|dailymotion\.com)$`), models.KindVideo},
	{regexp.MustCompile(`(^|\.)(twitch\.tv)$`), models.KindLive},
	{regexp.MustCompile(`(^|\.)(github\.com|gitlab\.com|bitbucket\.org|codeberg\.org)$`), models.KindRepo},
	{regexp.MustCompile(`(^|\.)(npmjs\.com|pypi\.org|crates\.io|pkg\.go\.dev|rubygems\.org)$`), models.KindPackage},
	{regexp.MustCompile(`(^|\.)wikipedia\.org$`), models.KindWiki},
	{regexp.MustCompile(`(^|\.)(wiktionary\.org|fandom\.com)$`), models.KindWiki},
	{regexp.MustCompile(`(^|\.)(stackoverflow\.com|stackexchange\.com|reddit\.com|news\.ycombinator\.com)$`), models.KindForum},
	{regexp.MustCompile(`(^|\.)(twitter\.com|x\.com|facebook\.com|instagram\.com|tiktok\.com|linkedin\.com|mastodon\.social|bsky\.app)$`), models.KindSocial},
	{regexp.MustCompile(`(^|\.)(arxiv\.org|doi\.org|nature\.com|sciencedirect\.com)$`), models.KindPaper},
	{regexp.MustCompile(`(^|\.)(kaggle\.com|data\.gov|zenodo\.org)$`), models.KindDataset},
	{regexp.MustCompile(`(^|\.)(spotify\.com|soundcloud\.com)$`), models.KindAudio},
	{regexp.MustCompile(`(^|\.)(maps\.google\.[a-z.]+|openstreetmap\.org)$`), models.KindMap},
	{regexp.MustCompile(`(^|\.)(coursera\.org|udemy\.com|edx\.org)$`), models.KindCourse},
}

type pathRule struct {
	pattern *regexp.Regexp
	kind    models.SourceKind
}

var pathRules = []pathRule{
	{regexp.MustCompile(`(?i)/(jobs?|careers?|vacancies|stellenangebote|emploi)s?(/|$)`), models.KindJob},
	{regexp.MustCompile(`(?i)/(docs?|documentation|reference|manual)(/|$)`), models.KindDocs},
	{regexp.MustCompile(`(?i)/(pricing|tarifs?|preise)(/|$)`), models.KindPricing},
	{regexp.MustCompile(`(?i)/(support|help|faq|troubleshoot)`), models.KindSupport},
	{regexp.MustCompile(`(?i)/(downloads?|releases)(/|$)`), models.KindDownload},
	{regexp.MustCompile(`(?i)/(products?|shop|store|item)s?(/|$)`), models.KindProduct},
	{regexp.MustCompile(`(?i)/(events?|agenda|kalender)(/|$)`), models.KindEvent},
	{regexp.MustCompile(`(?i)/(recipes?|recettes?|rezepte?)(/|$)`), models.KindRecipe},
	{regexp.MustCompile(`(?i)/(news|aktuelles|actualites)(/|$)`), models.KindNews},
	{regexp.MustCompile(`(?i)/(blog|articles?)(/|$)`), models.KindArticle},
	{regexp.MustCompile(`(?i)/(gallery|galerie|photos)(/|$)`), models.KindGallery},
	{regexp.MustCompile(`(?i)/(profile|user|author|member)s?/`), models.KindProfile},
	{regexp.MustCompile(`(?i)/(about|company|team|imprint|impressum)(/|$)`), models.KindOrganization},
	{regexp.MustCompile(`(?i)/(live|stream)(/|$)`), models.KindLive},
	{regexp.MustCompile(`(?i)/(podcast|episode)s?(/|$)`), models.KindPodcast},
	{regexp.MustCompile(`(?i)/(dataset|data)s?(/|$)`), models.KindDataset},
	{regexp.MustCompile(`(?i)/(courses?|lessons?)(/|$)`), models.KindCourse},
	{regexp.MustCompile(`(?i)/(tools?|calculator|converter)s?(/|$)`), models.KindTool},
	{regexp.MustCompile(`(?i)/wiki/`), models.KindWiki},
	{regexp.MustCompile(`(?i)/(forum|thread|topic)s?/`), models.KindForum},
}

// embed/Open Graph og:type values, lowest structured priority
var embedTypeKinds = map[string]models.SourceKind{
	"article":               models.KindArticle,
	"video":                 models.KindVideo,
	"video.other":           models.KindVideo,
	"video.movie":           models.KindVideo,
	"video.episode":         models.KindVideo,
	"music.song":            models.KindAudio,
	"music.album":           models.KindAudio,
	"book":                  models.KindBook,
	"profile":               models.KindProfile,
	"product":               models.KindProduct,
	"place":                 models.KindMap,
	"business.business":     models.KindOrganization,
	"website":               models.KindGeneric,
}

// Classify assigns exactly one SourceKind per document. Priority order:
// explicit content-type, structured-data type, URL/path heuristic, embed
// metadata, generic fallback.
func Classify(doc *models.SourceDocument, embedType string) models.SourceKind {
	if kind, ok := fromContentType(doc.ContentType); ok {
		return kind
	}

	for _, raw := range doc.Facts.Types {
		if kind, ok := structuredTypeKinds[strings.ToLower(strings.TrimSpace(raw))]; ok {
			return kind
		}
	}

	if kind, ok := fromURL(doc.NormalizedURL); ok {
		return kind
	}

	if kind, ok := embedTypeKinds[strings.ToLower(strings.TrimSpace(embedType))]; ok && kind != models.KindGeneric {
		return kind
	}

	return models.KindGeneric
}

func fromContentType(contentType string) (models.SourceKind, bool) {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return models.KindImage, true
	case strings.HasPrefix(mediaType, "video/"):
		return models.KindVideo, true
	case strings.HasPrefix(mediaType, "audio/"):
		return models.KindAudio, true
	case mediaType == "application/pdf" || mediaType == "application/msword",
		strings.HasPrefix(mediaType, "application/vnd.openxmlformats"):
		return models.KindDocument, true
	case mediaType == "text/csv" || mediaType == "application/x-ndjson":
		return models.KindDataset, true
	}
	return "", false
}

func fromURL(raw string) (models.SourceKind, bool) {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")

	for _, rule := range hostRules {
		if rule.pattern.MatchString(host) {
			return rule.kind, true
		}
	}
	if strings.HasPrefix(host, "docs.") || strings.HasPrefix(host, "developer.") {
		return models.KindDocs, true
	}

	for _, rule := range pathRules {
		if rule.pattern.MatchString(parsed.Path) {
			return rule.kind, true
		}
	}
	return "", false
}
