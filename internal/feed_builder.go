package internal

import (
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/lychee-technology/erpgate"
)

// FeedBuilder renders Atom feeds and entries for one model.
type FeedBuilder struct {
	codec      *FieldCodec
	database   string
	model      string
	collection string
	namespace  string
	now        func() time.Time
}

func NewFeedBuilder(baseURL, database, model string, now func() time.Time) *FeedBuilder {
	if now == nil {
		now = time.Now
	}
	return &FeedBuilder{
		codec:      NewFieldCodec(baseURL, database),
		database:   database,
		model:      model,
		collection: erpgate.CollectionURL(baseURL, database, model),
		namespace:  erpgate.SchemaNamespace(baseURL, database, model),
		now:        now,
	}
}

// Codec returns the codec used for field values.
func (b *FeedBuilder) Codec() *FieldCodec { return b.codec }

// Namespace returns the namespace of the model's documents.
func (b *FeedBuilder) Namespace() string { return b.namespace }

// Feed renders the collection listing. Each record needs id and name.
func (b *FeedBuilder) Feed(records []erpgate.Record) *etree.Document {
	feed := etree.NewElement("feed")
	feed.CreateAttr("xmlns", atomNamespace)
	b.textElement(feed, "title", b.model)
	b.textElement(feed, "id", b.collection)

	updated := time.Time{}
	for _, rec := range records {
		if ts := recordTimestamp(rec); ts.After(updated) {
			updated = ts
		}
	}
	if updated.IsZero() {
		updated = b.now()
	}
	feed.CreateElement("updated").SetText(updated.UTC().Format(time.RFC3339))
	b.link(feed, "self", b.collection, "")
	b.link(feed, "describedby", b.collection+"/schema", "")
	b.author(feed)

	for _, rec := range records {
		id, _ := toInt(rec["id"])
		entry := feed.CreateElement("entry")
		b.textElement(entry, "title", recordTitle(rec))
		url := b.collection + "/" + strconv.Itoa(id)
		b.textElement(entry, "id", url)
		entry.CreateElement("updated").SetText(b.updated(rec).Format(time.RFC3339))
		b.link(entry, "", url, "")
	}
	return newDocument(feed)
}

// Entry renders one record with its content, its last-modification time
// and a link for every workflow action allowed in the record's state.
func (b *FeedBuilder) Entry(rec erpgate.Record, fields erpgate.ModelDescriptors, buttons []erpgate.WorkflowButton) (*etree.Document, time.Time) {
	id, _ := toInt(rec["id"])
	url := b.collection + "/" + strconv.Itoa(id)
	updated := b.updated(rec)

	entry := etree.NewElement("entry")
	entry.CreateAttr("xmlns", atomNamespace)
	b.textElement(entry, "title", recordTitle(rec))
	b.textElement(entry, "id", url)
	entry.CreateElement("updated").SetText(updated.Format(time.RFC3339))
	b.author(entry)
	b.link(entry, "self", url, "")
	b.link(entry, "edit", url, "")

	state, _ := rec["state"].(string)
	for _, button := range allowedButtons(buttons, state) {
		b.link(entry, b.collection+"/workflow", url+"/"+button.Name, button.Label)
	}

	content := entry.CreateElement("content")
	content.CreateAttr("type", "application/xml")
	content.AddChild(b.ModelElement(id, map[string]any(rec), fields, true))
	return newDocument(entry), updated
}

// DefaultsEntry renders a blank record filled with the model defaults.
func (b *FeedBuilder) DefaultsEntry(defaults erpgate.Defaults, fields erpgate.ModelDescriptors) *etree.Document {
	entry := etree.NewElement("entry")
	entry.CreateAttr("xmlns", atomNamespace)
	b.textElement(entry, "title", "Defaults for "+b.model)
	b.textElement(entry, "id", b.collection+"/defaults")
	entry.CreateElement("updated").SetText(b.now().UTC().Format(time.RFC3339))
	b.author(entry)
	b.link(entry, "self", b.collection+"/defaults", "")

	content := entry.CreateElement("content")
	content.CreateAttr("type", "application/xml")
	content.AddChild(b.ModelElement(0, map[string]any(defaults), fields, false))
	return newDocument(entry)
}

// ModelElement renders the model element holding values. Every declared
// field gets an element, empty when values lacks it. This is also the
// reference rendering documents are diffed against.
func (b *FeedBuilder) ModelElement(id int, values map[string]any, fields erpgate.ModelDescriptors, withComments bool) *etree.Element {
	el := etree.NewElement(erpgate.ElementName(b.model))
	el.CreateAttr("xmlns", b.namespace)
	el.CreateElement("id").SetText(strconv.Itoa(id))
	for _, field := range fields.Sorted() {
		if field.Name == "id" {
			continue
		}
		el.AddChild(b.codec.Encode(field, values[field.Name], withComments))
	}
	return el
}

func (b *FeedBuilder) updated(rec erpgate.Record) time.Time {
	if ts := recordTimestamp(rec); !ts.IsZero() {
		return ts
	}
	return b.now().UTC().Truncate(time.Second)
}

func (b *FeedBuilder) textElement(parent *etree.Element, tag, text string) {
	el := parent.CreateElement(tag)
	if tag == "title" {
		el.CreateAttr("type", "text")
	}
	el.SetText(text)
}

func (b *FeedBuilder) link(parent *etree.Element, rel, href, title string) {
	link := parent.CreateElement("link")
	if rel != "" {
		link.CreateAttr("rel", rel)
	}
	link.CreateAttr("href", href)
	if title != "" {
		link.CreateAttr("title", title)
	}
}

func (b *FeedBuilder) author(parent *etree.Element) {
	parent.CreateElement("author").CreateElement("name").SetText(b.database)
}

// recordTimestamp is the record's last write, falling back to its creation.
func recordTimestamp(rec erpgate.Record) time.Time {
	for _, key := range []string{"write_date", "create_date"} {
		if s, ok := rec[key].(string); ok && s != "" {
			if t, ok := parseDatetime(s); ok {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

func recordTitle(rec erpgate.Record) string {
	if name, ok := rec["name"].(string); ok && name != "" {
		return name
	}
	id, _ := toInt(rec["id"])
	return strconv.Itoa(id)
}
