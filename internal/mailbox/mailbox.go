// Package mailbox fetches unseen messages over IMAP and acknowledges the one
// that produced a bake plan.
package mailbox

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"sort"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/villageroaster/bakeboard/internal/resilience"
)

// Message is one fetched message.
type Message struct {
	UID uint32
	Raw []byte
}

// Mailbox is what the ingestion loop needs from a mail store.
type Mailbox interface {
	FetchUnseen(ctx context.Context) ([]Message, error)
	MarkSeen(ctx context.Context, uid uint32) error
}

// session is the subset of *client.Client used here.
type session interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Logout() error
}

// Config holds connection settings.
type Config struct {
	Host      string
	Username  string
	Password  string
	Mailbox   string
	ScanLimit int
}

// Client talks IMAP over TLS. Each call opens its own connection.
type Client struct {
	cfg  Config
	dial func(ctx context.Context) (session, error)
}

// New returns a Client for cfg.
func New(cfg Config) *Client {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = 10
	}
	c := &Client{cfg: cfg}
	c.dial = c.dialTLS
	return c
}

func (c *Client) dialTLS(ctx context.Context) (session, error) {
	host, _, err := net.SplitHostPort(c.cfg.Host)
	if err != nil {
		host = c.cfg.Host
	}
	d := &tls.Dialer{Config: &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}}
	conn, err := d.DialContext(ctx, "tcp", c.cfg.Host)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// go-imap v1 has no context support; closing the socket unblocks it.
	stop := context.AfterFunc(ctx, func() { conn.Close() }) //nolint:errcheck

	cl, err := client.New(conn)
	if err != nil {
		stop()
		conn.Close() //nolint:errcheck
		return nil, err
	}
	return &tlsSession{Client: cl, stop: stop}, nil
}

// tlsSession releases the context hook when the session ends.
type tlsSession struct {
	*client.Client
	stop func() bool
}

func (s *tlsSession) Logout() error {
	defer s.stop()
	return s.Client.Logout()
}

func (c *Client) configured() bool {
	return c.cfg.Username != "" && c.cfg.Password != ""
}

func transient(err error, msg string) error {
	return resilience.NewTransientError(eris.Wrap(err, msg), 0)
}

// open dials, logs in and selects the mailbox.
func (c *Client) open(ctx context.Context, readOnly bool) (session, error) {
	s, err := c.dial(ctx)
	if err != nil {
		return nil, transient(err, "mailbox: connect")
	}
	if err := s.Login(c.cfg.Username, c.cfg.Password); err != nil {
		s.Logout() //nolint:errcheck
		return nil, transient(err, "mailbox: login")
	}
	if _, err := s.Select(c.cfg.Mailbox, readOnly); err != nil {
		s.Logout() //nolint:errcheck
		return nil, transient(err, "mailbox: select "+c.cfg.Mailbox)
	}
	return s, nil
}

// FetchUnseen returns up to ScanLimit of the newest unseen messages, newest
// first. Bodies are fetched with PEEK so nothing is marked seen. Missing
// credentials yield no messages and no error.
func (c *Client) FetchUnseen(ctx context.Context) ([]Message, error) {
	log := zap.L().With(zap.String("component", "mailbox"))
	if !c.configured() {
		log.Warn("mailbox: credentials missing, skipping fetch")
		return nil, nil
	}

	s, err := c.open(ctx, true)
	if err != nil {
		return nil, err
	}
	defer s.Logout() //nolint:errcheck

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := s.UidSearch(criteria)
	if err != nil {
		return nil, transient(err, "mailbox: search unseen")
	}
	log.Info("mailbox: unseen messages", zap.Int("count", len(uids)))
	if len(uids) == 0 {
		return nil, nil
	}

	uids = newest(uids, c.cfg.ScanLimit)
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid}

	ch := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() { done <- s.UidFetch(seqset, items, ch) }()

	byUID := make(map[uint32][]byte, len(uids))
	for msg := range ch {
		body := msg.GetBody(section)
		if body == nil {
			log.Warn("mailbox: message without body", zap.Uint32("uid", msg.Uid))
			continue
		}
		raw, rerr := io.ReadAll(body)
		if rerr != nil {
			log.Warn("mailbox: read body failed", zap.Uint32("uid", msg.Uid), zap.Error(rerr))
			continue
		}
		byUID[msg.Uid] = raw
	}
	if err := <-done; err != nil {
		return nil, transient(err, "mailbox: fetch")
	}

	out := make([]Message, 0, len(uids))
	for _, uid := range uids {
		if raw, ok := byUID[uid]; ok {
			out = append(out, Message{UID: uid, Raw: raw})
		}
	}
	return out, nil
}

// MarkSeen flags uid as \Seen on a fresh connection.
func (c *Client) MarkSeen(ctx context.Context, uid uint32) error {
	if !c.configured() {
		return eris.New("mailbox: credentials missing")
	}

	s, err := c.open(ctx, false)
	if err != nil {
		return err
	}
	defer s.Logout() //nolint:errcheck

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := s.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return transient(err, "mailbox: mark seen")
	}
	zap.L().Info("mailbox: message marked seen",
		zap.String("component", "mailbox"),
		zap.Uint32("uid", uid),
	)
	return nil
}

// newest returns the limit highest UIDs, highest first.
func newest(uids []uint32, limit int) []uint32 {
	sorted := append([]uint32(nil), uids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
