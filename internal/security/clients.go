package security

import (
	"crypto/subtle"

	"github.com/josepablo-design/marketplace/configs"
)

// Client is an operator client allowed to request tokens.
type Client struct {
	ID      string
	Secret  string
	Perms   []string // e.g. {"orders.read","orders.refund"}
	Enabled bool
}

const (
	PermOrdersRead    = "orders.read"
	PermOrdersConfirm = "orders.confirm"
	PermOrdersRefund  = "orders.refund"
)

type ClientRegistry struct {
	clients map[string]Client
}

func NewClientRegistry(cfg []configs.ClientConfig) *ClientRegistry {
	r := &ClientRegistry{clients: make(map[string]Client, len(cfg))}
	for _, c := range cfg {
		if c.ID == "" || c.Secret == "" {
			continue
		}
		r.clients[c.ID] = Client{ID: c.ID, Secret: c.Secret, Perms: c.Perms, Enabled: !c.Disabled}
	}
	return r
}

// Authenticate returns the client when the id/secret pair matches an enabled
// client.
func (r *ClientRegistry) Authenticate(id, secret string) (Client, bool) {
	c, ok := r.clients[id]
	if !ok || !c.Enabled {
		return Client{}, false
	}
	if subtle.ConstantTimeCompare([]byte(c.Secret), []byte(secret)) != 1 {
		return Client{}, false
	}
	return c, true
}
