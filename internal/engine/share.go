package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"eventline/internal/access"
	"eventline/internal/config"
	"eventline/internal/domain"
	"eventline/internal/events"
	"eventline/internal/repo"
	"eventline/internal/schedule"
)

// ShareCreateOptions are parameters for a new share link. A zero TTL takes
// the event's configured link lifetime.
type ShareCreateOptions struct {
	EventID     string
	SubjectKind string
	SubjectID   string
	TTL         time.Duration
	ActorID     string
}

// IssuedLink is a stored link together with its bearer token.
type IssuedLink struct {
	Link  domain.ShareLink `json:"link"`
	Token string           `json:"token"`
}

func (e Engine) CreateShareLink(ctx context.Context, opts ShareCreateOptions) (IssuedLink, error) {
	if err := access.ValidSubject(opts.SubjectKind, opts.SubjectID); err != nil {
		return IssuedLink{}, invalid("subject", err.Error())
	}
	if opts.TTL < 0 {
		return IssuedLink{}, invalid("ttl", "must be positive")
	}
	cfg, err := e.config(ctx, opts.EventID)
	if err != nil {
		return IssuedLink{}, err
	}
	ttl := opts.TTL
	if ttl == 0 {
		ttl = cfg.LinkTTL()
	}
	now := e.now().UTC()
	link := domain.ShareLink{
		ID:          uuid.NewString(),
		EventID:     opts.EventID,
		SubjectKind: opts.SubjectKind,
		SubjectID:   opts.SubjectID,
		CreatedBy:   opts.ActorID,
		CreatedAt:   now.Format(time.RFC3339),
		ExpiresAt:   now.Add(ttl).Format(time.RFC3339),
	}
	var token string
	err = e.mutate(ctx, opts.EventID, opts.ActorID, config.PermShareManage, func(tx *sql.Tx) error {
		if err := e.subjectExists(ctx, tx, link.EventID, link.SubjectKind, link.SubjectID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return invalid("subject_id", fmt.Sprintf("no %s %s in this event", link.SubjectKind, link.SubjectID))
			}
			return err
		}
		if err := e.Repo.InsertShareLink(ctx, tx, link); err != nil {
			return err
		}
		var err error
		if token, err = e.Issuer.Mint(link); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, events.ShareCreated, link.EventID, "share_link", link.ID, opts.ActorID,
			events.Payload{"subject_kind": link.SubjectKind, "subject_id": link.SubjectID, "expires_at": link.ExpiresAt})
	})
	if err != nil {
		return IssuedLink{}, err
	}
	return IssuedLink{Link: link, Token: token}, nil
}

func (e Engine) ListShareLinks(ctx context.Context, eventID, actorID string) ([]domain.ShareLink, error) {
	if _, err := e.member(ctx, eventID, actorID); err != nil {
		return nil, err
	}
	return e.Repo.ListShareLinks(ctx, eventID)
}

// ShareToken mints the token of an existing link again, since tokens are
// not stored.
func (e Engine) ShareToken(ctx context.Context, eventID, linkID, actorID string) (IssuedLink, error) {
	cfg, err := e.config(ctx, eventID)
	if err != nil {
		return IssuedLink{}, err
	}
	if _, err := e.Auth.Require(ctx, nil, cfg, eventID, actorID, config.PermShareManage); err != nil {
		return IssuedLink{}, err
	}
	link, err := e.Repo.GetShareLink(ctx, linkID)
	if err != nil {
		return IssuedLink{}, err
	}
	if link.EventID != eventID {
		return IssuedLink{}, repo.ErrNotFound
	}
	if err := access.Live(link, e.now()); err != nil {
		return IssuedLink{}, err
	}
	token, err := e.Issuer.Mint(link)
	if err != nil {
		return IssuedLink{}, err
	}
	return IssuedLink{Link: link, Token: token}, nil
}

func (e Engine) RevokeShareLink(ctx context.Context, eventID, linkID, actorID string) (domain.ShareLink, error) {
	link, err := e.Repo.GetShareLink(ctx, linkID)
	if err != nil {
		return domain.ShareLink{}, err
	}
	if link.EventID != eventID {
		return domain.ShareLink{}, repo.ErrNotFound
	}
	err = e.mutate(ctx, eventID, actorID, config.PermShareManage, func(tx *sql.Tx) error {
		if err := e.Repo.RevokeShareLink(ctx, tx, linkID, e.ts()); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, events.ShareRevoked, eventID, "share_link", linkID, actorID, nil)
	})
	if err != nil {
		return domain.ShareLink{}, err
	}
	return e.Repo.GetShareLink(ctx, linkID)
}

// ResolveShare verifies a bearer token and returns the link and the viewer
// it stands for. Links whose person or vendor was deleted stop working.
func (e Engine) ResolveShare(ctx context.Context, token string) (access.Grant, error) {
	claims, err := e.Issuer.Parse(token)
	if err != nil {
		return access.Grant{}, err
	}
	link, err := e.Repo.GetShareLink(ctx, claims.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return access.Grant{}, access.ErrInvalidLink
	}
	if err != nil {
		return access.Grant{}, err
	}
	if err := access.Check(link, claims, e.now()); err != nil {
		return access.Grant{}, err
	}
	role, err := e.subjectRole(ctx, link)
	if errors.Is(err, repo.ErrNotFound) {
		return access.Grant{}, fmt.Errorf("%w: %s no longer exists", access.ErrLinkRevoked, link.SubjectKind)
	}
	if err != nil {
		return access.Grant{}, err
	}
	return access.Grant{Link: link, Viewer: access.ViewerFor(link, role)}, nil
}

// SharedView is what a share-link holder sees.
type SharedView struct {
	Event   domain.Event     `json:"event"`
	Viewer  schedule.Viewer  `json:"viewer"`
	Mode    schedule.Mode    `json:"mode"`
	Entries []schedule.Entry `json:"entries"`
	Summary schedule.Summary `json:"summary"`
}

// SharedTimeline projects the timeline for a link holder. Guests only get
// the global view.
func (e Engine) SharedTimeline(ctx context.Context, token string, mode schedule.Mode) (SharedView, error) {
	grant, ev, s, err := e.openShared(ctx, token)
	if err != nil {
		return SharedView{}, err
	}
	if grant.Viewer.Kind == schedule.ViewerGuest {
		mode = schedule.ModeGlobal
	}
	summary, err := s.Summary()
	if err != nil {
		return SharedView{}, err
	}
	entries, err := schedule.Project(s.Items(), grant.Viewer, mode)
	if err != nil {
		return SharedView{}, err
	}
	return SharedView{
		Event:   ev,
		Viewer:  grant.Viewer,
		Mode:    mode,
		Entries: entries,
		Summary: summary,
	}, nil
}

// SharedCalendar renders the link holder's schedule as iCalendar.
func (e Engine) SharedCalendar(ctx context.Context, token string, mode schedule.Mode) (string, error) {
	grant, ev, s, err := e.openShared(ctx, token)
	if err != nil {
		return "", err
	}
	if grant.Viewer.Kind == schedule.ViewerGuest {
		mode = schedule.ModeGlobal
	}
	items := s.Items()
	entries, err := schedule.Project(items, grant.Viewer, mode)
	if err != nil {
		return "", err
	}
	return e.buildCalendar(ev, items, entries)
}

// SharedContacts lists the people and vendors the link holder works with:
// everyone assigned to one of the holder's items. Guests get nothing.
type SharedContacts struct {
	People  []domain.Person `json:"people"`
	Vendors []domain.Vendor `json:"vendors"`
}

func (e Engine) SharedContacts(ctx context.Context, token string) (SharedContacts, error) {
	grant, _, s, err := e.openShared(ctx, token)
	if err != nil {
		return SharedContacts{}, err
	}
	out := SharedContacts{People: []domain.Person{}, Vendors: []domain.Vendor{}}
	if grant.Viewer.Kind == schedule.ViewerGuest {
		return out, nil
	}
	entries, err := schedule.Project(s.Items(), grant.Viewer, schedule.ModePersonal)
	if err != nil {
		return SharedContacts{}, err
	}
	people, vendors := map[string]bool{}, map[string]bool{}
	for _, entry := range entries {
		for _, id := range entry.Item.AssignedPersonIDs {
			people[id] = true
		}
		for _, id := range entry.Item.AssignedVendorIDs {
			vendors[id] = true
		}
	}
	allPeople, err := e.Repo.ListPeople(ctx, grant.Link.EventID)
	if err != nil {
		return SharedContacts{}, err
	}
	for _, p := range allPeople {
		if people[p.ID] {
			p.Notes = ""
			out.People = append(out.People, p)
		}
	}
	allVendors, err := e.Repo.ListVendors(ctx, grant.Link.EventID)
	if err != nil {
		return SharedContacts{}, err
	}
	for _, v := range allVendors {
		if vendors[v.ID] {
			v.Notes = ""
			out.Vendors = append(out.Vendors, v)
		}
	}
	return out, nil
}

func (e Engine) openShared(ctx context.Context, token string) (access.Grant, domain.Event, *schedule.Store, error) {
	grant, err := e.ResolveShare(ctx, token)
	if err != nil {
		return access.Grant{}, domain.Event{}, nil, err
	}
	ev, err := e.Repo.GetEvent(ctx, grant.Link.EventID)
	if err != nil {
		return access.Grant{}, domain.Event{}, nil, err
	}
	cfg, err := e.config(ctx, ev.ID)
	if err != nil {
		return access.Grant{}, domain.Event{}, nil, err
	}
	s, err := e.loadStore(ctx, cfg, ev.ID, "")
	if err != nil {
		return access.Grant{}, domain.Event{}, nil, err
	}
	return grant, ev, s, nil
}

func (e Engine) subjectExists(ctx context.Context, tx *sql.Tx, eventID, kind, id string) error {
	switch kind {
	case schedule.ViewerPerson:
		_, err := e.personIn(ctx, tx, eventID, id)
		return err
	case schedule.ViewerVendor:
		_, err := e.vendorIn(ctx, tx, eventID, id)
		return err
	}
	return nil
}

// subjectRole returns the role label of the link's subject.
func (e Engine) subjectRole(ctx context.Context, link domain.ShareLink) (string, error) {
	switch link.SubjectKind {
	case schedule.ViewerPerson:
		p, err := e.personIn(ctx, nil, link.EventID, link.SubjectID)
		return p.Role, err
	case schedule.ViewerVendor:
		v, err := e.vendorIn(ctx, nil, link.EventID, link.SubjectID)
		return v.ServiceType, err
	}
	return "", nil
}
