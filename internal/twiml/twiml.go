// Package twiml builds the call-control XML documents returned to the
// telephony provider from voice webhooks. Only the verbs this service
// actually speaks are modelled; no provider SDK is pulled in for what is a
// small fixed vocabulary.
package twiml

import (
	"bytes"
	"encoding/xml"
)

type response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type sayVerb struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type playVerb struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

type recordVerb struct {
	XMLName            xml.Name `xml:"Record"`
	Action             string   `xml:"action,attr,omitempty"`
	Method             string   `xml:"method,attr,omitempty"`
	MaxLength          int      `xml:"maxLength,attr,omitempty"`
	PlayBeep           bool     `xml:"playBeep,attr"`
	Trim               string   `xml:"trim,attr,omitempty"`
	Transcribe         bool     `xml:"transcribe,attr"`
	TranscribeCallback string   `xml:"transcribeCallback,attr,omitempty"`
}

// RecordOptions configures a Record verb.
type RecordOptions struct {
	// Action is the URL the provider posts the recording-status
	// notification to.
	Action string
	// Method is the HTTP method for Action (provider default is POST).
	Method string
	// MaxLengthSeconds caps the recording length.
	MaxLengthSeconds int
	// PlayBeep plays a tone before recording starts.
	PlayBeep bool
	// Trim is the silence-trimming mode (e.g. "trim-silence").
	Trim string
	// Transcribe requests speech-to-text for the recording.
	Transcribe bool
	// TranscribeCallback is the URL the transcript notification posts to.
	TranscribeCallback string
}

// Response accumulates call-control verbs in order.
type Response struct {
	verbs []any
}

// New returns an empty call-control response.
func New() *Response {
	return &Response{}
}

// Say appends a spoken-text instruction.
func (r *Response) Say(text string) *Response {
	r.verbs = append(r.verbs, sayVerb{Text: text})
	return r
}

// Play appends an audio-playback instruction.
func (r *Response) Play(url string) *Response {
	r.verbs = append(r.verbs, playVerb{URL: url})
	return r
}

// Record appends a record-caller-audio instruction.
func (r *Response) Record(opts RecordOptions) *Response {
	r.verbs = append(r.verbs, recordVerb{
		Action:             opts.Action,
		Method:             opts.Method,
		MaxLength:          opts.MaxLengthSeconds,
		PlayBeep:           opts.PlayBeep,
		Trim:               opts.Trim,
		Transcribe:         opts.Transcribe,
		TranscribeCallback: opts.TranscribeCallback,
	})
	return r
}

// Render serialises the response as an XML document with header.
func (r *Response) Render() (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(response{Verbs: r.verbs}); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Empty returns the no-op call-control document. The provider must always
// receive well-formed instructions or the call drops ungracefully, so
// handlers answer with this instead of an HTTP error whenever a call
// cannot be routed.
func Empty() string {
	return xml.Header + "<Response></Response>"
}
