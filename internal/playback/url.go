package playback

import (
	"net/url"
	"strings"

	"github.com/PizzaHomicide/kiri/internal/domain"
)

// Delivery is how a stream reaches the sink
type Delivery int

const (
	// DeliveryAdaptive streams through an Engine, or natively when the sink understands HLS
	DeliveryAdaptive Delivery = iota
	// DeliveryProgressive hands the file URL straight to the sink
	DeliveryProgressive
)

func (d Delivery) String() string {
	if d == DeliveryProgressive {
		return "progressive"
	}
	return "adaptive"
}

// Plan is the resolved media URL and delivery for one playback request
type Plan struct {
	URL      string
	Delivery Delivery
}

// NewPlan builds the media URL {server}/{live|movie|series}/{user}/{pass}/{id}.{ext}.  Live is always adaptive.  Movies
// and episodes are adaptive when the extension is empty or m3u8, progressive otherwise.  Series need an episode.
func NewPlan(creds domain.Credentials, item domain.ContentItem, episode *domain.Episode) (Plan, error) {
	if err := creds.Validate(); err != nil {
		return Plan{}, err
	}

	var id, ext string
	switch item.Type {
	case domain.ContentLive:
		id, ext = item.ID, domain.ExtensionHLS
	case domain.ContentVOD:
		id, ext = item.ID, item.ContainerExtension
	case domain.ContentSeries:
		if episode == nil {
			return Plan{}, &domain.ValidationError{Field: "episode", Message: "Cannot play a series without choosing an episode."}
		}
		id, ext = episode.ID, episode.ContainerExtension
		if ext == "" {
			ext = item.ContainerExtension
		}
	default:
		return Plan{}, &domain.ValidationError{Field: "type", Message: "Cannot determine playback type."}
	}
	if id == "" {
		return Plan{}, &domain.ValidationError{Field: "id", Message: "Cannot play: missing id."}
	}

	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	delivery := DeliveryProgressive
	if ext == "" || ext == domain.ExtensionHLS {
		delivery = DeliveryAdaptive
		ext = domain.ExtensionHLS
	}

	segments := []string{
		creds.BaseURL(),
		item.Type.MediaPath(),
		url.PathEscape(creds.Username),
		url.PathEscape(creds.Password),
		url.PathEscape(id) + "." + ext,
	}
	return Plan{URL: strings.Join(segments, "/"), Delivery: delivery}, nil
}
