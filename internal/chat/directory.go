package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"chattersphere/internal/domain"
)

const DefaultPollInterval = time.Second

// Contact es un usuario del directorio visto por el usuario actual.
type Contact struct {
	domain.PublicUser
	Online bool
}

// DirectoryView refresca periodicamente el listado de usuarios, excluyendo al propio.
type DirectoryView struct {
	lister   UserLister
	selfID   string
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	contacts []Contact
	onUpdate func([]Contact)

	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewDirectoryView(lister UserLister, selfID string, interval time.Duration, logger *zap.Logger) *DirectoryView {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryView{
		lister:   lister,
		selfID:   selfID,
		interval: interval,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OnUpdate registra un callback invocado tras cada refresco exitoso.
func (d *DirectoryView) OnUpdate(fn func([]Contact)) {
	d.mu.Lock()
	d.onUpdate = fn
	d.mu.Unlock()
}

// Refresh trae el listado completo una vez.
func (d *DirectoryView) Refresh(ctx context.Context) error {
	users, err := d.lister.ListPublicUsers(ctx)
	if err != nil {
		return err
	}
	now := d.now()
	contacts := make([]Contact, 0, len(users))
	for _, u := range users {
		if u.ID == d.selfID {
			continue
		}
		contacts = append(contacts, Contact{
			PublicUser: u,
			Online:     u.IsOnline && domain.IsOnline(u.LastSeen, now),
		})
	}

	d.mu.Lock()
	d.contacts = contacts
	fn := d.onUpdate
	d.mu.Unlock()
	if fn != nil {
		fn(cloneContacts(contacts))
	}
	return nil
}

// Start hace el primer refresco y luego refresca cada intervalo hasta Close o ctx.Done.
// Los errores de los refrescos periodicos se registran y se reintenta en el siguiente tick.
func (d *DirectoryView) Start(ctx context.Context) error {
	if err := d.Refresh(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := d.Refresh(ctx); err != nil && ctx.Err() == nil {
					d.logger.Warn("directory refresh failed", zap.Error(err))
				}
			}
		}
	}()
	return nil
}

func (d *DirectoryView) Close() {
	d.stopOnce.Do(func() {
		if d.cancel != nil {
			d.cancel()
		}
	})
	d.wg.Wait()
}

// Contacts devuelve el ultimo listado conocido.
func (d *DirectoryView) Contacts() []Contact {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return cloneContacts(d.contacts)
}

// Search filtra por nombre o email sin distinguir mayusculas; query vacia devuelve todo.
func (d *DirectoryView) Search(query string) []Contact {
	return FilterContacts(d.Contacts(), query)
}

func (d *DirectoryView) Lookup(id string) (Contact, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.contacts {
		if c.ID == id {
			return c, true
		}
	}
	return Contact{}, false
}

// IsOnline indica si el contacto aparecia conectado en el ultimo refresco.
func (d *DirectoryView) IsOnline(id string) bool {
	c, ok := d.Lookup(id)
	return ok && c.Online
}

func FilterContacts(contacts []Contact, query string) []Contact {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return contacts
	}
	out := make([]Contact, 0, len(contacts))
	for _, c := range contacts {
		if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(strings.ToLower(c.Email), q) {
			out = append(out, c)
		}
	}
	return out
}

// LastSeenLabel formatea el tiempo desde la ultima actividad.
func LastSeenLabel(lastSeen, now time.Time) string {
	diff := now.Sub(lastSeen)
	minutes := int(diff / time.Minute)
	hours := int(diff / time.Hour)
	days := int(diff / (24 * time.Hour))

	switch {
	case minutes < 1:
		return "online"
	case minutes < 60:
		return fmt.Sprintf("last seen %dm ago", minutes)
	case hours < 24:
		return fmt.Sprintf("last seen %dh ago", hours)
	default:
		return fmt.Sprintf("last seen %dd ago", days)
	}
}

// Initials devuelve hasta dos iniciales en mayusculas.
func Initials(name string) string {
	out := make([]rune, 0, 2)
	for _, part := range strings.Fields(name) {
		out = append(out, []rune(strings.ToUpper(part))[0])
		if len(out) == 2 {
			break
		}
	}
	return string(out)
}

func cloneContacts(in []Contact) []Contact {
	if in == nil {
		return nil
	}
	return append([]Contact(nil), in...)
}
