package constants

// ContentType is a declared or sniffed MIME type for scroll content.
type ContentType string

func (t ContentType) Bytes() []byte {
	return []byte(t)
}

func (t ContentType) String() string {
	return string(t)
}

// MediaType returns the coarse media class for the content type, used by
// viewers to decide how to render the content.
func (t ContentType) MediaType() MediaType {
	for _, media := range Medias {
		if media.ContentType == t {
			return media.MediaType
		}
	}
	return MediaUnknown
}

const (
	ContentTypeCbor             ContentType = "application/cbor"
	ContentTypeJson             ContentType = "application/json"
	ContentTypeOctetStream      ContentType = "application/octet-stream"
	ContentTypePdf              ContentType = "application/pdf"
	ContentTypeYaml             ContentType = "application/yaml"
	ContentTypeAudioMpeg        ContentType = "audio/mpeg"
	ContentTypeAudioWav         ContentType = "audio/wav"
	ContentTypeImageGif         ContentType = "image/gif"
	ContentTypeImageJpeg        ContentType = "image/jpeg"
	ContentTypeImagePng         ContentType = "image/png"
	ContentTypeImageSvgXml      ContentType = "image/svg+xml"
	ContentTypeImageWebp        ContentType = "image/webp"
	ContentTypeTextCss          ContentType = "text/css"
	ContentTypeTextHtml         ContentType = "text/html"
	ContentTypeTextHtmlUtf8     ContentType = "text/html;charset=utf-8"
	ContentTypeTextJs           ContentType = "text/javascript"
	ContentTypeTextMarkdown     ContentType = "text/markdown"
	ContentTypeTextMarkdownUtf8 ContentType = "text/markdown;charset=utf-8"
	ContentTypeTextPlain        ContentType = "text/plain"
	ContentTypeTextPlainUtf8    ContentType = "text/plain;charset=utf-8"
	ContentTypeVideoMp4         ContentType = "video/mp4"
	ContentTypeVideoWebm        ContentType = "video/webm"
)

type MediaType string

func (m MediaType) String() string {
	return string(m)
}

const (
	MediaUnknown    MediaType = "unknown"
	MediaAudio      MediaType = "audio"
	MediaCss        MediaType = "css"
	MediaJavaScript MediaType = "javascript"
	MediaJson       MediaType = "json"
	MediaYaml       MediaType = "yaml"
	MediaIframe     MediaType = "iframe"
	MediaImage      MediaType = "image"
	MediaMarkdown   MediaType = "markdown"
	MediaPdf        MediaType = "pdf"
	MediaText       MediaType = "text"
	MediaVideo      MediaType = "video"
)

type Extension string

const (
	ExtensionCbor Extension = "cbor"
	ExtensionJson Extension = "json"
	ExtensionBin  Extension = "bin"
	ExtensionPdf  Extension = "pdf"
	ExtensionYaml Extension = "yaml"
	ExtensionYml  Extension = "yml"
	ExtensionMp3  Extension = "mp3"
	ExtensionWav  Extension = "wav"
	ExtensionGif  Extension = "gif"
	ExtensionJpg  Extension = "jpg"
	ExtensionJpeg Extension = "jpeg"
	ExtensionPng  Extension = "png"
	ExtensionSvg  Extension = "svg"
	ExtensionWebp Extension = "webp"
	ExtensionCss  Extension = "css"
	ExtensionHtml Extension = "html"
	ExtensionJs   Extension = "js"
	ExtensionMd   Extension = "md"
	ExtensionTxt  Extension = "txt"
	ExtensionMp4  Extension = "mp4"
	ExtensionWebm Extension = "webm"
)

type Media struct {
	ContentType ContentType
	MediaType   MediaType
	Extensions  []Extension
}

var Medias = []Media{
	{ContentTypeCbor, MediaUnknown, []Extension{ExtensionCbor}},
	{ContentTypeJson, MediaJson, []Extension{ExtensionJson}},
	{ContentTypeOctetStream, MediaUnknown, []Extension{ExtensionBin}},
	{ContentTypePdf, MediaPdf, []Extension{ExtensionPdf}},
	{ContentTypeYaml, MediaYaml, []Extension{ExtensionYaml, ExtensionYml}},
	{ContentTypeAudioMpeg, MediaAudio, []Extension{ExtensionMp3}},
	{ContentTypeAudioWav, MediaAudio, []Extension{ExtensionWav}},
	{ContentTypeImageGif, MediaImage, []Extension{ExtensionGif}},
	{ContentTypeImageJpeg, MediaImage, []Extension{ExtensionJpg, ExtensionJpeg}},
	{ContentTypeImagePng, MediaImage, []Extension{ExtensionPng}},
	{ContentTypeImageSvgXml, MediaIframe, []Extension{ExtensionSvg}},
	{ContentTypeImageWebp, MediaImage, []Extension{ExtensionWebp}},
	{ContentTypeTextCss, MediaCss, []Extension{ExtensionCss}},
	{ContentTypeTextHtml, MediaIframe, []Extension{}},
	{ContentTypeTextHtmlUtf8, MediaIframe, []Extension{ExtensionHtml}},
	{ContentTypeTextJs, MediaJavaScript, []Extension{ExtensionJs}},
	{ContentTypeTextMarkdown, MediaMarkdown, []Extension{}},
	{ContentTypeTextMarkdownUtf8, MediaMarkdown, []Extension{ExtensionMd}},
	{ContentTypeTextPlain, MediaText, []Extension{}},
	{ContentTypeTextPlainUtf8, MediaText, []Extension{ExtensionTxt}},
	{ContentTypeVideoMp4, MediaVideo, []Extension{ExtensionMp4}},
	{ContentTypeVideoWebm, MediaVideo, []Extension{ExtensionWebm}},
}

// ExtensionForContentType returns the preferred file extension for a content
// type, or ExtensionBin when none is known. The charset suffix, if any, is
// ignored for matching.
func ExtensionForContentType(t ContentType) Extension {
	for _, media := range Medias {
		if media.ContentType != t {
			continue
		}
		if len(media.Extensions) > 0 {
			return media.Extensions[0]
		}
	}
	// Retry against the charset-qualified variants sharing the bare type.
	for _, media := range Medias {
		if baseType(media.ContentType) == baseType(t) && len(media.Extensions) > 0 {
			return media.Extensions[0]
		}
	}
	return ExtensionBin
}

func baseType(t ContentType) string {
	s := t.String()
	for i := 0; i < len(s); i++ {
		if s[i] == ';' {
			return s[:i]
		}
	}
	return s
}
