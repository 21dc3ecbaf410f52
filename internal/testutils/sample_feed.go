package testutils

import (
	"github.com/amor/amor-go/pathutil"
)

// SampleFeedJSON is a five-record feed in the shape most directive examples use
const SampleFeedJSON = `{
  "data": [
    {"feed": {"id": 1, "title": "title1", "url": "url1"}},
    {"feed": {"id": 2, "title": "title2", "url": "url2"}},
    {"feed": {"id": 3, "title": "title3", "url": "url3"}},
    {"feed": {"id": 4, "title": "title4", "url": "url4"}},
    {"feed": {"id": 5, "title": "title5", "url": "url5"}}
  ]
}`

// TwoFeedJSON is the smallest feed that exercises wildcard fan-out
const TwoFeedJSON = `{"data": [{"feed": {"id": 1, "url": "u1"}}, {"feed": {"id": 2, "url": "u2"}}]}`

// SampleFeed returns SampleFeedJSON as a document
func SampleFeed() *pathutil.Document {
	return pathutil.MustDocument(SampleFeedJSON)
}

// TwoFeed returns TwoFeedJSON as a document
func TwoFeed() *pathutil.Document {
	return pathutil.MustDocument(TwoFeedJSON)
}
