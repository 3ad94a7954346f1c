// Package reply builds outbound message bodies from domain data. All
// composers are pure: no I/O, no clocks except where a template field
// is defined as "now" by the wire format.
package reply

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/jokr/taaskly/internal/graph"
	"github.com/jokr/taaskly/internal/models"
)

// Template payload types for the me/messages attachment envelope.

// Button is one button inside a template.
type Button struct {
	Type                string `json:"type"`
	Title               string `json:"title,omitempty"`
	URL                 string `json:"url,omitempty"`
	Payload             string `json:"payload,omitempty"`
	MessengerExtensions bool   `json:"messenger_extensions,omitempty"`
	WebviewHeightRatio  string `json:"webview_height_ratio,omitempty"`
}

// ButtonPayload is the "button" template.
type ButtonPayload struct {
	TemplateType string   `json:"template_type"`
	Text         string   `json:"text"`
	Buttons      []Button `json:"buttons"`
}

// Element is one card of a generic or list template.
type Element struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	ItemURL  string   `json:"item_url,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	Buttons  []Button `json:"buttons,omitempty"`
}

// GenericPayload is the "generic" carousel template.
type GenericPayload struct {
	TemplateType string    `json:"template_type"`
	Elements     []Element `json:"elements"`
}

// ListPayload is the "list" template.
type ListPayload struct {
	TemplateType    string    `json:"template_type"`
	TopElementStyle string    `json:"top_element_style"`
	Elements        []Element `json:"elements"`
}

// OpenGraphElement carries a shareable URL with optional buttons.
type OpenGraphElement struct {
	URL     string   `json:"url"`
	Buttons []Button `json:"buttons,omitempty"`
}

// OpenGraphPayload is the "open_graph" template.
type OpenGraphPayload struct {
	TemplateType string             `json:"template_type"`
	Elements     []OpenGraphElement `json:"elements"`
}

// ReceiptItem is one line of a receipt template.
type ReceiptItem struct {
	Title    string  `json:"title"`
	Subtitle string  `json:"subtitle,omitempty"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

// ReceiptPayload is the "receipt" template.
type ReceiptPayload struct {
	TemplateType  string        `json:"template_type"`
	RecipientName string        `json:"recipient_name"`
	OrderNumber   string        `json:"order_number"`
	Currency      string        `json:"currency"`
	PaymentMethod string        `json:"payment_method"`
	Timestamp     string        `json:"timestamp"`
	Elements      []ReceiptItem `json:"elements"`
	Summary       struct {
		TotalCost float64 `json:"total_cost"`
	} `json:"summary"`
}

// AirlinePayload is the "airline_boardingpass" template.
type AirlinePayload struct {
	TemplateType   string         `json:"template_type"`
	IntroMessage   string         `json:"intro_message"`
	Locale         string         `json:"locale"`
	BoardingPasses []BoardingPass `json:"boarding_pass"`
}

// BoardingPass is one traveler's pass.
type BoardingPass struct {
	PassengerName  string `json:"passenger_name"`
	PNRNumber      string `json:"pnr_number"`
	LogoImageURL   string `json:"logo_image_url"`
	AboveBarCode   string `json:"above_bar_code_image_url"`
	BarcodeImage   string `json:"barcode_image_url"`
	FlightInfo     Flight `json:"flight_info"`
	SeatInfo       string `json:"seat_info,omitempty"`
	QRCode         string `json:"qr_code,omitempty"`
	HeaderImageURL string `json:"header_image_url,omitempty"`
}

// Flight describes a single flight segment.
type Flight struct {
	FlightNumber     string      `json:"flight_number"`
	DepartureAirport Airport     `json:"departure_airport"`
	ArrivalAirport   Airport     `json:"arrival_airport"`
	FlightSchedule   FlightTimes `json:"flight_schedule"`
}

// Airport identifies one end of a flight segment.
type Airport struct {
	AirportCode string `json:"airport_code"`
	City        string `json:"city"`
}

// FlightTimes holds the schedule of a segment.
type FlightTimes struct {
	DepartureTime string `json:"departure_time"`
	ArrivalTime   string `json:"arrival_time"`
}

func template(payload any) graph.Message {
	return graph.Message{Attachment: &graph.Attachment{Type: "template", Payload: payload}}
}

// Text wraps plain text into a message body.
func Text(text string) graph.Message {
	return graph.Message{Text: text}
}

// Greeting is the reply to hi/hey/hello.
func Greeting() graph.Message {
	return Text(`Hi there! Type "help" to check out the full list of commands`)
}

// Default echoes unrecognized input back to the user. The original,
// non-normalized text is embedded so the user sees what they typed.
func Default(original string) graph.Message {
	return Text(fmt.Sprintf("Did you just say %s? Try \"help\" to find the list of commands supported!", original))
}

// Buttons is the sample button template.
func Buttons() graph.Message {
	return template(ButtonPayload{
		TemplateType: "button",
		Text:         "Message with buttons!",
		Buttons: []Button{
			{Type: "web_url", URL: "https://workplace.facebook.com", Title: "Open Workplace"},
			{Type: "postback", Title: "Trigger Postback", Payload: "PAYLOAD"},
			{Type: "phone_number", Title: "Call Phone Number", Payload: "999"},
		},
	})
}

// QuickReplies is the sample quick-reply prompt.
func QuickReplies() graph.Message {
	return graph.Message{
		Text: "What's your favorite movie genre?",
		QuickReplies: []graph.QuickReply{
			{ContentType: "text", Title: "Action", Payload: "DEVELOPER_DEFINED_PAYLOAD_FOR_PICKING_ACTION"},
			{ContentType: "text", Title: "Comedy", Payload: "DEVELOPER_DEFINED_PAYLOAD_FOR_PICKING_COMEDY"},
			{ContentType: "text", Title: "Drama", Payload: "DEVELOPER_DEFINED_PAYLOAD_FOR_PICKING_DRAMA"},
		},
	}
}

// Extension builds the extension-launch button. The URL is composed
// component-wise so a hostile host header or app id cannot inject
// extra query parameters.
func Extension(host, appID string) graph.Message {
	query := url.Values{}
	query.Set("appID", appID)
	extensionURL := url.URL{
		Scheme:   "https",
		Host:     host,
		Path:     "/extension",
		RawQuery: query.Encode(),
	}
	return template(ButtonPayload{
		TemplateType: "button",
		Text:         "Web page with Extension SDK enabled",
		Buttons: []Button{
			{
				Type:                "web_url",
				MessengerExtensions: true,
				URL:                 extensionURL.String(),
				Title:               "This is a title",
				WebviewHeightRatio:  "tall",
			},
		},
	})
}

// documentLink returns the canonical document URL under the base URL.
func documentLink(baseURL string, id int64) string {
	return fmt.Sprintf("%sdocument/%d", baseURL, id)
}

// Generic renders recent documents as a generic carousel.
func Generic(baseURL string, docs []models.Document) graph.Message {
	elements := make([]Element, 0, len(docs))
	for _, doc := range docs {
		link := documentLink(baseURL, doc.ID)
		elements = append(elements, Element{
			Title:    doc.Name,
			Subtitle: doc.Excerpt(80),
			ItemURL:  link,
			Buttons: []Button{
				{Type: "web_url", URL: link, Title: "Open Document"},
			},
		})
	}
	if len(elements) == 0 {
		return Text("No documents to show yet.")
	}
	return template(GenericPayload{TemplateType: "generic", Elements: elements})
}

// List renders recent documents as a compact list.
func List(baseURL string, docs []models.Document) graph.Message {
	// The list template requires 2-4 elements.
	if len(docs) < 2 {
		return Text("Not enough documents for a list. Create at least two first!")
	}
	if len(docs) > 4 {
		docs = docs[:4]
	}
	elements := make([]Element, 0, len(docs))
	for _, doc := range docs {
		elements = append(elements, Element{
			Title:    doc.Name,
			Subtitle: doc.Excerpt(80),
			Buttons: []Button{
				{Type: "web_url", URL: documentLink(baseURL, doc.ID), Title: "Open"},
			},
		})
	}
	return template(ListPayload{
		TemplateType:    "list",
		TopElementStyle: "compact",
		Elements:        elements,
	})
}

// OpenGraph is the sample open graph share.
func OpenGraph() graph.Message {
	return template(OpenGraphPayload{
		TemplateType: "open_graph",
		Elements: []OpenGraphElement{
			{
				URL: "https://open.spotify.com/track/7GhIk7Il098yCjg4BQjzvb",
				Buttons: []Button{
					{Type: "web_url", URL: "https://en.wikipedia.org/wiki/Rickrolling", Title: "View More"},
				},
			},
		},
	})
}

// Receipt renders the recipient's open tasks as a receipt. The order
// number and timestamp are derived from the send time, so two
// receipts differ even for identical task lists.
func Receipt(recipientName string, tasks []models.Task, now time.Time) graph.Message {
	items := make([]ReceiptItem, 0, len(tasks))
	for _, task := range tasks {
		subtitle := "open"
		if task.Completed {
			subtitle = "completed"
		}
		if task.Priority != nil {
			subtitle += ", " + *task.Priority + " priority"
		}
		items = append(items, ReceiptItem{
			Title:    task.Title,
			Subtitle: subtitle,
			Quantity: 1,
			Price:    0,
			Currency: "USD",
		})
	}
	if len(items) == 0 {
		items = append(items, ReceiptItem{Title: "Nothing to do", Quantity: 1, Price: 0, Currency: "USD"})
	}
	payload := ReceiptPayload{
		TemplateType:  "receipt",
		RecipientName: recipientName,
		OrderNumber:   strconv.FormatInt(now.UnixNano(), 10),
		Currency:      "USD",
		PaymentMethod: "None",
		Timestamp:     strconv.FormatInt(now.Unix(), 10),
		Elements:      items,
	}
	return template(payload)
}

// Flight is the sample boarding pass.
func FlightPass(passengerName string) graph.Message {
	return template(AirlinePayload{
		TemplateType: "airline_boardingpass",
		IntroMessage: "You are checked in.",
		Locale:       "en_US",
		BoardingPasses: []BoardingPass{
			{
				PassengerName: passengerName,
				PNRNumber:     "CG4X7U",
				LogoImageURL:  "https://www.example.com/en/logo.png",
				QRCode:        "M1SMITH\\/NICOLAS  CG4X7U nawouehgawgnapwi3jfa0wfh",
				SeatInfo:      "Seat 74J",
				FlightInfo: Flight{
					FlightNumber: "KL0642",
					DepartureAirport: Airport{
						AirportCode: "JFK",
						City:        "New York",
					},
					ArrivalAirport: Airport{
						AirportCode: "AMS",
						City:        "Amsterdam",
					},
					FlightSchedule: FlightTimes{
						DepartureTime: "2026-01-02T19:05",
						ArrivalTime:   "2026-01-03T07:30",
					},
				},
			},
		},
	})
}

// Inbox renders the bot's threads as plain text, one per line.
func Inbox(threads []graph.Thread) graph.Message {
	if len(threads) == 0 {
		return Text("Your inbox is empty.")
	}
	text := "Your threads:\n"
	for _, thread := range threads {
		name := thread.Name
		if name == "" {
			name = "(unnamed)"
		}
		text += fmt.Sprintf("%s - %d participant(s)\n", name, len(thread.Participants.Data))
	}
	return Text(text)
}
