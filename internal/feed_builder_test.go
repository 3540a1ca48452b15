package internal

import (
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/lychee-technology/erpgate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var builderNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func fixedNow() time.Time { return builderNow }

func orderDescriptors() erpgate.ModelDescriptors {
	return erpgate.ModelDescriptors{
		"name":  {Name: "name", Type: erpgate.FieldTypeChar, Required: true},
		"state": {Name: "state", Type: erpgate.FieldTypeSelection},
	}
}

func linksByRel(el *etree.Element) map[string][]*etree.Element {
	links := make(map[string][]*etree.Element)
	for _, link := range el.SelectElements("link") {
		rel := link.SelectAttrValue("rel", "")
		links[rel] = append(links[rel], link)
	}
	return links
}

func TestFeedBuilderFeed(t *testing.T) {
	fb := NewFeedBuilder(testBase, "demo", "res.partner", fixedNow)
	doc := fb.Feed([]erpgate.Record{
		{"id": int64(1), "name": "Agrolait", "write_date": "2026-02-01 08:30:00"},
		{"id": int64(3), "name": false, "create_date": "2026-01-05 10:00:00"},
	})

	feed := doc.Root()
	require.NotNil(t, feed)
	assert.Equal(t, "feed", feed.Tag)
	assert.Equal(t, atomNamespace, feed.SelectAttrValue("xmlns", ""))
	assert.Equal(t, "res.partner", feed.SelectElement("title").Text())
	assert.Equal(t, testBase+"/demo/res.partner", feed.SelectElement("id").Text())
	assert.Equal(t, "2026-02-01T08:30:00Z", feed.SelectElement("updated").Text())
	assert.Equal(t, "demo", feed.FindElement("author/name").Text())

	links := linksByRel(feed)
	require.Len(t, links["self"], 1)
	assert.Equal(t, testBase+"/demo/res.partner", links["self"][0].SelectAttrValue("href", ""))
	require.Len(t, links["describedby"], 1)
	assert.Equal(t, testBase+"/demo/res.partner/schema", links["describedby"][0].SelectAttrValue("href", ""))

	entries := feed.SelectElements("entry")
	require.Len(t, entries, 2)
	assert.Equal(t, "Agrolait", entries[0].SelectElement("title").Text())
	assert.Equal(t, testBase+"/demo/res.partner/1", entries[0].SelectElement("id").Text())
	assert.Equal(t, "3", entries[1].SelectElement("title").Text())
	assert.Equal(t, "2026-01-05T10:00:00Z", entries[1].SelectElement("updated").Text())
	assert.Equal(t, testBase+"/demo/res.partner/3", entries[1].SelectElement("link").SelectAttrValue("href", ""))
}

func TestFeedBuilderEmptyFeed(t *testing.T) {
	doc := NewFeedBuilder(testBase, "demo", "res.partner", fixedNow).Feed(nil)
	assert.Equal(t, "2026-03-14T09:26:53Z", doc.Root().SelectElement("updated").Text())
	assert.Empty(t, doc.Root().SelectElements("entry"))

	s, err := doc.WriteToString()
	require.NoError(t, err)
	assert.Contains(t, s, `<?xml version="1.0" encoding="UTF-8"?>`)
}

func TestFeedBuilderEntry(t *testing.T) {
	fb := NewFeedBuilder(testBase, "demo", "sale.order", fixedNow)
	rec := erpgate.Record{"id": int64(1), "name": "SO001", "state": "draft", "write_date": "2026-03-01 12:00:00"}

	doc, updated := fb.Entry(rec, orderDescriptors(), orderButtons())
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), updated)

	entry := doc.Root()
	assert.Equal(t, "entry", entry.Tag)
	assert.Equal(t, "SO001", entry.SelectElement("title").Text())
	assert.Equal(t, "2026-03-01T12:00:00Z", entry.SelectElement("updated").Text())

	links := linksByRel(entry)
	url := testBase + "/demo/sale.order/1"
	assert.Equal(t, url, links["self"][0].SelectAttrValue("href", ""))
	assert.Equal(t, url, links["edit"][0].SelectAttrValue("href", ""))

	workflow := links[testBase+"/demo/sale.order/workflow"]
	require.Len(t, workflow, 3)
	assert.Equal(t, url+"/order_confirm", workflow[0].SelectAttrValue("href", ""))
	assert.Equal(t, "Confirm", workflow[0].SelectAttrValue("title", ""))
	assert.Equal(t, url+"/action_cancel", workflow[1].SelectAttrValue("href", ""))
	assert.Equal(t, url+"/action_view_invoice", workflow[2].SelectAttrValue("href", ""))

	content := entry.SelectElement("content")
	require.NotNil(t, content)
	assert.Equal(t, "application/xml", content.SelectAttrValue("type", ""))
	order := content.SelectElement("sale_order")
	require.NotNil(t, order)
	assert.Equal(t, testBase+"/demo/sale.order/schema", order.SelectAttrValue("xmlns", ""))
	assert.Equal(t, "1", order.SelectElement("id").Text())
	assert.Equal(t, "SO001", order.SelectElement("name").Text())
	assert.Equal(t, "draft", order.SelectElement("state").Text())
}

func TestFeedBuilderEntryWithoutTimestamps(t *testing.T) {
	fb := NewFeedBuilder(testBase, "demo", "sale.order", fixedNow)
	doc, updated := fb.Entry(erpgate.Record{"id": int64(2), "name": "SO002", "state": "done"}, orderDescriptors(), orderButtons())

	assert.Equal(t, builderNow, updated)
	links := linksByRel(doc.Root())
	assert.Len(t, links[testBase+"/demo/sale.order/workflow"], 1, "only the stateless button applies")
}

func TestFeedBuilderDefaultsEntry(t *testing.T) {
	fb := NewFeedBuilder(testBase, "demo", "res.partner", fixedNow)
	doc := fb.DefaultsEntry(erpgate.Defaults{"active": true, "type": "contact"}, partnerDescriptors())

	entry := doc.Root()
	assert.Equal(t, testBase+"/demo/res.partner/defaults", entry.SelectElement("id").Text())

	partner := entry.FindElement("content/res_partner")
	require.NotNil(t, partner)
	assert.Equal(t, "0", partner.SelectElement("id").Text())
	assert.Equal(t, "True", partner.SelectElement("active").Text())
	assert.Equal(t, "contact", partner.SelectElement("type").Text())
	assert.Empty(t, partner.SelectElement("name").Text())
	assert.Equal(t, "res.partner", partner.SelectElement("parent_id").SelectAttrValue("relation", ""))
	assert.Len(t, partner.ChildElements(), len(partnerDescriptors())+1)
}
