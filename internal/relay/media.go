package relay

import (
	"github.com/amarnathcjd/gogram/telegram"

	"github.com/hakutakaid/SaveRestrict/internal/media"
)

// MediaKind is the closed set of content categories the executor can
// deliver. Everything else is skipped, never guessed at.
type MediaKind int

const (
	KindNone MediaKind = iota // text-only message
	KindPhoto
	KindVideo
	KindVideoNote
	KindAudio
	KindVoice
	KindSticker
	KindDocument
	KindUnsupported
)

func (k MediaKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindPhoto:
		return "photo"
	case KindVideo:
		return "video"
	case KindVideoNote:
		return "video_note"
	case KindAudio:
		return "audio"
	case KindVoice:
		return "voice"
	case KindSticker:
		return "sticker"
	case KindDocument:
		return "document"
	default:
		return "unsupported"
	}
}

// MediaInfo is the executor's view of a fetched message.
type MediaInfo struct {
	Kind     MediaKind
	FileName string
	Size     int64
	Caption  string
}

// uploadSpec drives the kind-specific upload behaviour. One table, no
// per-kind branching in the executor.
type uploadSpec struct {
	wantsThumb    bool // attach user thumb or a generated frame
	wantsMetadata bool // probe duration and dimensions
	forceDocument bool
	attrs         func(name string, meta media.Metadata) []telegram.DocumentAttribute
}

var uploadSpecs = map[MediaKind]uploadSpec{
	KindVideo: {
		wantsThumb:    true,
		wantsMetadata: true,
		attrs: func(name string, meta media.Metadata) []telegram.DocumentAttribute {
			return []telegram.DocumentAttribute{
				&telegram.DocumentAttributeVideo{
					SupportsStreaming: true,
					Duration:          float64(meta.Duration),
					W:                 meta.Width,
					H:                 meta.Height,
				},
				&telegram.DocumentAttributeFilename{FileName: name},
			}
		},
	},
	KindVideoNote: {
		wantsMetadata: true,
		attrs: func(name string, meta media.Metadata) []telegram.DocumentAttribute {
			return []telegram.DocumentAttribute{
				&telegram.DocumentAttributeVideo{
					RoundMessage: true,
					Duration:     float64(meta.Duration),
					W:            meta.Width,
					H:            meta.Height,
				},
			}
		},
	},
	KindAudio: {
		wantsThumb:    true,
		wantsMetadata: true,
		attrs: func(name string, meta media.Metadata) []telegram.DocumentAttribute {
			return []telegram.DocumentAttribute{
				&telegram.DocumentAttributeAudio{Duration: meta.Duration},
				&telegram.DocumentAttributeFilename{FileName: name},
			}
		},
	},
	KindVoice: {
		wantsMetadata: true,
		attrs: func(name string, meta media.Metadata) []telegram.DocumentAttribute {
			return []telegram.DocumentAttribute{
				&telegram.DocumentAttributeAudio{Voice: true, Duration: meta.Duration},
			}
		},
	},
	KindPhoto: {
		attrs: func(string, media.Metadata) []telegram.DocumentAttribute { return nil },
	},
	KindSticker: {
		attrs: func(name string, _ media.Metadata) []telegram.DocumentAttribute {
			return []telegram.DocumentAttribute{
				&telegram.DocumentAttributeFilename{FileName: name},
			}
		},
	},
	KindDocument: {
		wantsThumb:    true,
		forceDocument: true,
		attrs: func(name string, _ media.Metadata) []telegram.DocumentAttribute {
			return []telegram.DocumentAttribute{
				&telegram.DocumentAttributeFilename{FileName: name},
			}
		},
	},
}

// Deliverable reports whether the executor has an upload strategy for
// the kind.
func (k MediaKind) Deliverable() bool {
	_, ok := uploadSpecs[k]
	return ok
}

// Describe extracts the executor's view from a fetched message.
func Describe(msg *telegram.NewMessage) MediaInfo {
	info := MediaInfo{Caption: msg.MessageText()}

	if !msg.IsMedia() {
		info.Kind = KindNone
		return info
	}

	if photo := msg.Photo(); photo != nil {
		info.Kind = KindPhoto
		return info
	}

	doc := msg.Document()
	if doc == nil {
		info.Kind = KindUnsupported
		return info
	}

	info.Kind = KindDocument
	info.Size = int64(doc.Size)
	for _, attr := range doc.Attributes {
		switch a := attr.(type) {
		case *telegram.DocumentAttributeFilename:
			info.FileName = a.FileName
		case *telegram.DocumentAttributeVideo:
			if a.RoundMessage {
				info.Kind = KindVideoNote
			} else {
				info.Kind = KindVideo
			}
		case *telegram.DocumentAttributeAudio:
			if a.Voice {
				info.Kind = KindVoice
			} else {
				info.Kind = KindAudio
			}
		case *telegram.DocumentAttributeSticker:
			info.Kind = KindSticker
		}
	}
	return info
}
