package offline

// Message types exchanged between the page and the worker
const (
	MessageCacheIcons   = "CACHE_ICONS"
	MessageClearCache   = "CLEAR_CACHE"
	MessageGetCacheSize = "GET_CACHE_SIZE"
	MessageCacheSize    = "CACHE_SIZE"
	MessageSyncComplete = "SYNC_COMPLETE"
	MessageError        = "ERROR"
)

// Message is one protocol frame
type Message struct {
	Type     string       `json:"type"`
	Icons    []CachedIcon `json:"icons,omitempty"`
	Size     *int         `json:"size,omitempty"`
	SyncType string       `json:"syncType,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// CachedIcon is an icon handed to the worker for offline use
type CachedIcon struct {
	Filename     string `json:"filename"`
	EncodedImage string `json:"encodedImage"`
}

func cacheSizeMessage(size int) Message {
	return Message{Type: MessageCacheSize, Size: &size}
}
