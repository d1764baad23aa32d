package mailbox

import "github.com/emersion/go-sasl"

// xoauth2Client implements the SASL XOAUTH2 mechanism used by Office 365
// and Gmail. go-sasl ships OAUTHBEARER but not XOAUTH2, so the initial
// response is built by hand.
type xoauth2Client struct {
	username string
	token    string
}

// NewXOAuth2 returns a sasl.Client carrying a bearer access token.
func NewXOAuth2(username, accessToken string) sasl.Client {
	return &xoauth2Client{username: username, token: accessToken}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

// Next is only invoked when the server rejects the token and sends an
// error challenge; replying with an empty response makes the server
// finish the exchange with a tagged NO.
func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return []byte{}, nil
}
