package telephony

import "encoding/xml"

// TwiML response rendered to the inbound-voice webhook: an optional greeting
// spoken by the platform, then a bidirectional media stream connected to our
// websocket endpoint with the call id and identity as custom parameters.

type twimlResponse struct {
	XMLName xml.Name      `xml:"Response"`
	Say     *twimlSay     `xml:"Say,omitempty"`
	Connect *twimlConnect `xml:"Connect"`
}

type twimlSay struct {
	Voice string `xml:"voice,attr,omitempty"`
	Text  string `xml:",chardata"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string       `xml:"url,attr"`
	Parameters []twimlParam `xml:"Parameter"`
}

type twimlParam struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConnectStreamTwiML renders the webhook response. greeting may be empty, in
// which case the <Say> verb is omitted and the stream connects immediately.
func ConnectStreamTwiML(greeting, streamURL, callID, identity string) ([]byte, error) {
	resp := twimlResponse{
		Connect: &twimlConnect{
			Stream: twimlStream{
				URL: streamURL,
				Parameters: []twimlParam{
					{Name: "callId", Value: callID},
					{Name: "identity", Value: identity},
				},
			},
		},
	}
	if greeting != "" {
		resp.Say = &twimlSay{Text: greeting}
	}

	body, err := xml.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
