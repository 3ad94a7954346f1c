package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/jokr/taaskly/internal/metrics"
	"github.com/jokr/taaskly/internal/models"
)

// LinkChange is the value of a link-topic change notification.
type LinkChange struct {
	Link      string `json:"link"`
	Community Party  `json:"community"`
	User      Party  `json:"user"`
	Payload   string `json:"payload,omitempty"`
	Value     string `json:"value,omitempty"`
}

// PreviewEntity is one unfurled item in a link callback response.
type PreviewEntity struct {
	Link           string        `json:"link"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	Privacy        string        `json:"privacy"`
	Type           string        `json:"type"`
	Icon           string        `json:"icon,omitempty"`
	DownloadURL    string        `json:"download_url,omitempty"`
	CanonicalLink  string        `json:"canonical_link,omitempty"`
	Actions        []EntityField `json:"actions,omitempty"`
	AdditionalData []EntityField `json:"additional_data,omitempty"`
}

// EntityField is a labeled datum or action button on a preview entity.
type EntityField struct {
	Title    string      `json:"title,omitempty"`
	Format   string      `json:"format,omitempty"`
	Value    interface{} `json:"value,omitempty"`
	Color    string      `json:"color,omitempty"`
	Payload  string      `json:"payload,omitempty"`
	Disabled bool        `json:"disabled,omitempty"`
	Type     string      `json:"type,omitempty"`
}

// LinkResponse is the synchronous body of a link callback. linked_user
// tells the platform whether to offer account linking.
type LinkResponse struct {
	Data       []PreviewEntity `json:"data"`
	LinkedUser bool            `json:"linked_user"`
}

var linkPattern = regexp.MustCompile(`/(document|task|folder)/([0-9]+)`)

// extractID pulls the entity kind and id out of a shared link.
func extractID(link string) (string, int64, error) {
	match := linkPattern.FindStringSubmatch(link)
	if match == nil {
		return "", 0, badRequest("Unknown document link")
	}
	id, err := strconv.ParseInt(match[2], 10, 64)
	if err != nil {
		return "", 0, badRequest("Unknown document link")
	}
	return match[1], id, nil
}

// LinkCallback answers link unfurl requests. Unlike messaging, these
// are synchronous: the platform renders the preview from the response
// body, so errors surface as real HTTP failures.
func (h *Handler) LinkCallback(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	h.record(r, body)

	if err := h.gate(r.Context()); err != nil {
		h.fail(w, err)
		return
	}

	if h.store == nil {
		h.Error(w, http.StatusServiceUnavailable, "no database configured")
		return
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.fail(w, errMalformatted())
		return
	}
	if env.Object != "link" {
		h.logger.Warn().Str("object", env.Object).Msg("link callback with wrong topic")
		h.fail(w, badRequest("Invalid topic."))
		return
	}
	change, err := ReadChange(&env)
	if err != nil {
		h.fail(w, err)
		return
	}
	var lc LinkChange
	if err := json.Unmarshal(change.Value, &lc); err != nil {
		h.fail(w, errMalformatted())
		return
	}

	ctx := r.Context()
	var resp *LinkResponse
	switch change.Field {
	case "preview":
		resp, err = h.handlePreview(ctx, &lc)
	case "collection":
		resp, err = h.handleCollection(ctx, &lc)
	case "postback":
		resp, err = h.handlePostback(ctx, &lc)
	default:
		err = badRequest("No handler for change.")
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	metrics.EventsHandled.WithLabelValues("link", change.Field).Inc()
	h.JSON(w, http.StatusOK, resp)
}

// viewer resolves the requesting community and the (possibly unlinked)
// user behind a link change. An unknown community is a hard error; an
// unknown user just means previews fall back to public visibility.
func (h *Handler) viewer(ctx context.Context, lc *LinkChange) (*models.User, error) {
	communityID, err := strconv.ParseInt(lc.Community.ID, 10, 64)
	if err != nil {
		return nil, badRequest("Unknown community.")
	}
	community, err := h.store.GetCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if community == nil {
		return nil, badRequest("Unknown community.")
	}
	workplaceID, err := strconv.ParseInt(lc.User.ID, 10, 64)
	if err != nil {
		return nil, nil
	}
	return h.store.GetUserByWorkplaceID(ctx, workplaceID)
}

func (h *Handler) handlePreview(ctx context.Context, lc *LinkChange) (*LinkResponse, error) {
	kind, id, err := extractID(lc.Link)
	if err != nil {
		return nil, err
	}
	user, err := h.viewer(ctx, lc)
	if err != nil {
		return nil, err
	}
	resp := &LinkResponse{Data: []PreviewEntity{}, LinkedUser: user != nil}

	switch kind {
	case "document":
		doc, err := h.store.GetDocumentForViewer(ctx, id, user)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			resp.Data = append(resp.Data, h.encodeDocument(doc, lc.Link))
		}
	case "folder":
		folder, err := h.store.GetFolderForViewer(ctx, id, user)
		if err != nil {
			return nil, err
		}
		if folder != nil {
			resp.Data = append(resp.Data, h.encodeFolder(folder, lc.Link))
		}
	case "task":
		// Tasks are only previewed for linked users.
		if user == nil {
			return resp, nil
		}
		task, err := h.store.GetTaskWithOwner(ctx, id)
		if err != nil {
			return nil, err
		}
		if task != nil {
			resp.Data = append(resp.Data, h.encodeTask(task, lc.Link))
		}
	default:
		return nil, badRequest("Invalid url.")
	}
	return resp, nil
}

const collectionLimit = 5

func (h *Handler) handleCollection(ctx context.Context, lc *LinkChange) (*LinkResponse, error) {
	user, err := h.viewer(ctx, lc)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return &LinkResponse{Data: []PreviewEntity{}, LinkedUser: false}, nil
	}

	if lc.Link != "" {
		if strings.HasSuffix(lc.Link, "personalized-tasks") {
			tasks, err := h.store.ListTasksWithOwners(ctx, 0)
			if err != nil {
				return nil, err
			}
			data := make([]PreviewEntity, 0, len(tasks))
			for i := range tasks {
				data = append(data, h.encodeTask(&tasks[i], ""))
			}
			return &LinkResponse{Data: data, LinkedUser: true}, nil
		}

		_, folderID, err := extractID(lc.Link)
		if err != nil {
			return nil, err
		}
		docs, err := h.store.ListFolderDocuments(ctx, folderID, user, collectionLimit)
		if err != nil {
			return nil, err
		}
		data := make([]PreviewEntity, 0, len(docs))
		for i := range docs {
			data = append(data, h.encodeDocument(&docs[i], ""))
		}
		return &LinkResponse{Data: data, LinkedUser: true}, nil
	}

	docs, err := h.store.ListDocumentsForViewer(ctx, user, collectionLimit)
	if err != nil {
		return nil, err
	}
	folders, err := h.store.ListFoldersForViewer(ctx, user, collectionLimit)
	if err != nil {
		return nil, err
	}

	// The synthetic tasks folder comes first, then real folders, then
	// recent documents.
	data := []PreviewEntity{{
		Link:    h.entityURL("personalized-tasks", 0),
		Title:   "Tasks",
		Privacy: "personalized",
		Type:    "folder",
	}}
	for i := range folders {
		data = append(data, h.encodeFolder(&folders[i], ""))
	}
	for i := range docs {
		data = append(data, h.encodeDocument(&docs[i], ""))
	}
	return &LinkResponse{Data: data, LinkedUser: true}, nil
}

func (h *Handler) handlePostback(ctx context.Context, lc *LinkChange) (*LinkResponse, error) {
	kind, id, err := extractID(lc.Link)
	if err != nil {
		return nil, err
	}
	if kind != "task" {
		return nil, badRequest("Invalid url.")
	}
	user, err := h.viewer(ctx, lc)
	if err != nil {
		return nil, err
	}
	resp := &LinkResponse{Data: []PreviewEntity{}, LinkedUser: user != nil}
	if user == nil {
		return resp, nil
	}
	task, err := h.store.GetTaskWithOwner(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return resp, nil
	}
	if lc.Payload == "Close.Task" && lc.Value == "Close" {
		if err := h.store.CompleteTask(ctx, task.ID); err != nil {
			return nil, err
		}
		task.Completed = true
	}
	resp.Data = append(resp.Data, h.encodeTask(task, lc.Link))
	return resp, nil
}

// entityURL builds the canonical URL for one entity; id 0 means the
// kind itself names the path (synthetic collections).
func (h *Handler) entityURL(kind string, id int64) string {
	base := strings.TrimSuffix(h.cfg.BaseURL, "/")
	if id == 0 {
		return base + "/" + kind
	}
	return base + "/" + kind + "/" + strconv.FormatInt(id, 10)
}

// entityPrivacy maps stored privacy onto the preview vocabulary: a
// public row is visible to the whole organization, anything else is
// only "accessible" because visibility was already checked per viewer.
func entityPrivacy(privacy string) string {
	if privacy == models.PrivacyPublic {
		return "organization"
	}
	return "accessible"
}

const excerptLength = 200

func (h *Handler) encodeDocument(doc *models.Document, link string) PreviewEntity {
	canonical := h.entityURL("document", doc.ID)
	if link == "" {
		link = canonical
	}
	return PreviewEntity{
		Link:          link,
		Title:         doc.Name,
		Description:   doc.Excerpt(excerptLength),
		Privacy:       entityPrivacy(doc.Privacy),
		Type:          "doc",
		Icon:          h.entityURL("taaskly.png", 0),
		DownloadURL:   h.entityURL("download", doc.ID),
		CanonicalLink: canonical,
	}
}

func (h *Handler) encodeFolder(folder *models.Folder, link string) PreviewEntity {
	canonical := h.entityURL("folder", folder.ID)
	if link == "" {
		link = canonical
	}
	return PreviewEntity{
		Link:          link,
		Title:         folder.Name,
		Privacy:       entityPrivacy(folder.Privacy),
		Type:          "folder",
		CanonicalLink: canonical,
	}
}

func (h *Handler) encodeTask(task *models.Task, link string) PreviewEntity {
	canonical := h.entityURL("task", task.ID)
	if link == "" {
		link = canonical
	}

	var additional []EntityField
	if task.Owner != nil && task.Owner.Linked() {
		additional = append(additional, EntityField{Title: "Owner", Format: "user", Value: *task.Owner.WorkplaceID})
	} else if task.Owner != nil {
		additional = append(additional, EntityField{Title: "Owner", Format: "text", Value: task.Owner.Username})
	}
	additional = append(additional, EntityField{Title: "Created", Format: "datetime", Value: task.CreatedAt})
	if task.Priority != nil {
		color := "yellow"
		switch *task.Priority {
		case models.PriorityHigh:
			color = "red"
		case models.PriorityMedium:
			color = "orange"
		}
		additional = append(additional, EntityField{Title: "Priority", Format: "text", Value: *task.Priority, Color: color})
	}

	actions := []EntityField{{
		Value:    "Close",
		Color:    "red",
		Payload:  "Close.Task",
		Disabled: task.Completed,
		Type:     "postback_button",
	}}

	return PreviewEntity{
		Link:           link,
		Title:          task.Title,
		Privacy:        "organization",
		Type:           "task",
		Icon:           h.entityURL("taaskly.png", 0),
		CanonicalLink:  canonical,
		Actions:        actions,
		AdditionalData: additional,
	}
}
