package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	waLog "go.mau.fi/whatsmeow/util/log"

	"zapdesk/internal/data/store"
)

// mediaErrorText is persisted as the message body when media processing
// fails; the message itself still goes through.
const mediaErrorText = "[media processing error]"

// voiceNoteMIME is the MIME type WhatsApp uses for voice notes.
const voiceNoteMIME = "audio/ogg; codecs=opus"

// MediaResult is the outcome of processing a media payload.
type MediaResult struct {
	Kind        string
	FileRef     string
	DisplayText string
}

// Downloader fetches the decrypted bytes of a media payload.
// session.Manager implements it against the live session.
type Downloader interface {
	Download(ctx context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error)
}

// MediaHandler classifies media payloads and persists their bytes to the
// blob directory.
type MediaHandler struct {
	downloader Downloader
	dir        string
	log        waLog.Logger
}

// NewMediaHandler creates a MediaHandler writing files under dir.
func NewMediaHandler(downloader Downloader, dir string, log waLog.Logger) *MediaHandler {
	return &MediaHandler{
		downloader: downloader,
		dir:        dir,
		log:        log.Sub("MediaHandler"),
	}
}

// Process downloads and stores a message's media payload. Failures are
// non-fatal: the result carries a placeholder body and kind "file" so the
// enclosing message is still persisted.
func (h *MediaHandler) Process(ctx context.Context, msg *waE2E.Message) MediaResult {
	payload := mediaPayload(msg)
	if payload == nil {
		return MediaResult{Kind: store.KindFile, DisplayText: mediaErrorText}
	}

	kind := classifyKind(payload.mime)
	filename := sanitizeFilename(payload.filename)
	if filename == "" {
		filename = fmt.Sprintf("media_%d.%s", time.Now().UnixMilli(), extensionFor(payload.mime))
	}

	data, err := h.downloader.Download(ctx, payload.dm)
	if err != nil {
		h.log.Errorf("Failed to download media: %v", err)
		return MediaResult{Kind: store.KindFile, DisplayText: mediaErrorText}
	}

	path := filepath.Join(h.dir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err == nil {
		err = os.WriteFile(path, data, 0644)
	}
	if err != nil {
		h.log.Errorf("Failed to store media file %s: %v", filename, err)
		return MediaResult{Kind: store.KindFile, DisplayText: mediaErrorText}
	}

	h.log.Debugf("Stored media %s (%d bytes, %s)", filename, len(data), kind)
	return MediaResult{
		Kind:        kind,
		FileRef:     filename,
		DisplayText: "Media: " + kind,
	}
}

// payload bundles the downloadable part of a message with its metadata.
type payload struct {
	dm       whatsmeow.DownloadableMessage
	mime     string
	filename string
}

// mediaPayload extracts the downloadable media attachment, if any.
func mediaPayload(msg *waE2E.Message) *payload {
	if msg == nil {
		return nil
	}
	if img := msg.GetImageMessage(); img != nil {
		return &payload{dm: img, mime: img.GetMimetype()}
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		return &payload{dm: vid, mime: vid.GetMimetype()}
	}
	if aud := msg.GetAudioMessage(); aud != nil {
		return &payload{dm: aud, mime: aud.GetMimetype()}
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		return &payload{dm: doc, mime: doc.GetMimetype(), filename: doc.GetFileName()}
	}
	if stk := msg.GetStickerMessage(); stk != nil {
		return &payload{dm: stk, mime: stk.GetMimetype()}
	}
	return nil
}

// sanitizeFilename reduces a contact-provided filename to a safe base
// name inside the blob directory. Returns "" when nothing usable remains,
// so the caller falls back to a synthesized name.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	).Replace(name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// classifyKind maps a MIME type to a message kind.
func classifyKind(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return store.KindImage
	case strings.HasPrefix(mime, "video/"):
		return store.KindVideo
	case strings.HasPrefix(mime, "audio/"):
		return store.KindAudio
	case mime == "application/pdf":
		return store.KindDocument
	default:
		return store.KindFile
	}
}

// extensionFor maps a MIME type to a file extension for synthesized names.
func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "video/mp4":
		return "mp4"
	case "video/avi", "video/x-msvideo":
		return "avi"
	case "audio/mpeg":
		return "mp3"
	case "audio/wav", "audio/x-wav":
		return "wav"
	case "audio/ogg", voiceNoteMIME:
		return "ogg"
	case "application/pdf":
		return "pdf"
	default:
		return "bin"
	}
}
