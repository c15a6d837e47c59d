package api

import (
	"cmp"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/papercomputeco/rolechat/pkg/chat"
	"github.com/papercomputeco/rolechat/pkg/client"
)

var (
	errNotFound          = errors.New("not found")
	errEmailTaken        = errors.New("email already registered")
	errInvalidCredential = errors.New("invalid credentials")
)

type account struct {
	user         client.User
	passwordHash []byte
}

// Store is the in-memory state of the dev backend. It is safe for concurrent
// use.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	nextID int64

	accounts      map[int64]*account
	byEmail       map[string]int64
	tokens        map[string]int64
	characters    []client.Character
	conversations map[int64]*client.Conversation
	messages      map[int64][]chat.Message
}

// NewStore returns a Store seeded with characters.
func NewStore(characters ...client.Character) *Store {
	s := &Store{
		now:           time.Now,
		accounts:      make(map[int64]*account),
		byEmail:       make(map[string]int64),
		tokens:        make(map[string]int64),
		conversations: make(map[int64]*client.Conversation),
		messages:      make(map[int64][]chat.Message),
	}

	for _, ch := range characters {
		ch.ID = s.id()
		ch.CreatedAt = s.now()
		ch.UpdatedAt = ch.CreatedAt
		s.characters = append(s.characters, ch)
	}

	return s
}

// DefaultCharacters is the cast served by "rolechat serve".
func DefaultCharacters() []client.Character {
	return []client.Character{
		{
			Name:         "Aria",
			Description:  "A travelling bard who answers in verse when the mood strikes.",
			SystemPrompt: "You are Aria, a cheerful travelling bard.",
			Category:     "fantasy",
		},
		{
			Name:         "Captain Vale",
			Description:  "A weathered starship captain with a story for every sector.",
			SystemPrompt: "You are Captain Vale, a veteran starship captain.",
			Category:     "sci-fi",
		},
		{
			Name:         "Professor Quill",
			Description:  "A patient historian who loves a good tangent.",
			SystemPrompt: "You are Professor Quill, a historian and storyteller.",
			Category:     "education",
		},
	}
}

// id returns the next identifier. Callers hold s.mu or own s exclusively.
func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Register creates an account and returns a fresh token for it.
func (s *Store) Register(username, email, password string) (client.User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return client.User{}, "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(email)
	if _, ok := s.byEmail[key]; ok {
		return client.User{}, "", errEmailTaken
	}

	now := s.now()
	u := client.User{ID: s.id(), Username: username, Email: email, CreatedAt: now, UpdatedAt: now}
	s.accounts[u.ID] = &account{user: u, passwordHash: hash}
	s.byEmail[key] = u.ID

	return u, s.issue(u.ID), nil
}

// Login verifies a password and returns a fresh token.
func (s *Store) Login(email, password string) (client.User, string, error) {
	s.mu.Lock()
	acct := s.accounts[s.byEmail[strings.ToLower(email)]]
	s.mu.Unlock()

	if acct == nil {
		return client.User{}, "", errInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
		return client.User{}, "", errInvalidCredential
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return acct.user, s.issue(acct.user.ID), nil
}

func (s *Store) issue(userID int64) string {
	token := uuid.NewString()
	s.tokens[token] = userID
	return token
}

// Authenticate resolves a token to its user.
func (s *Store) Authenticate(token string) (client.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.tokens[token]
	if !ok {
		return client.User{}, false
	}
	acct, ok := s.accounts[id]
	if !ok {
		return client.User{}, false
	}
	return acct.user, true
}

// Revoke invalidates a token.
func (s *Store) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// Characters returns every character.
func (s *Store) Characters() []client.Character {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.characters)
}

// Character returns one character.
func (s *Store) Character(id int64) (client.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.character(id)
}

func (s *Store) character(id int64) (client.Character, error) {
	for _, ch := range s.characters {
		if ch.ID == id {
			return ch, nil
		}
	}
	return client.Character{}, errNotFound
}

// SearchCharacters matches query against name, description and category,
// ignoring case.
func (s *Store) SearchCharacters(query string) []client.Character {
	q := strings.ToLower(query)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := []client.Character{}
	for _, ch := range s.characters {
		hay := strings.ToLower(ch.Name + " " + ch.Description + " " + ch.Category)
		if strings.Contains(hay, q) {
			out = append(out, ch)
		}
	}
	return out
}

// Conversations returns the user's conversations, most recently updated
// first.
func (s *Store) Conversations(userID int64) []client.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []client.Conversation{}
	for _, conv := range s.conversations {
		if conv.UserID == userID {
			out = append(out, *conv)
		}
	}
	slices.SortFunc(out, func(a, b client.Conversation) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

// CreateConversation starts a conversation between a user and a character.
func (s *Store) CreateConversation(userID, characterID int64) (client.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, err := s.character(characterID)
	if err != nil {
		return client.Conversation{}, err
	}

	now := s.now()
	conv := &client.Conversation{
		ID:          s.id(),
		UserID:      userID,
		CharacterID: characterID,
		Title:       "Chat with " + ch.Name,
		CreatedAt:   now,
		UpdatedAt:   now,
		Character:   &ch,
	}
	s.conversations[conv.ID] = conv

	return *conv, nil
}

// Conversation returns a conversation owned by userID.
func (s *Store) Conversation(id, userID int64) (client.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok || conv.UserID != userID {
		return client.Conversation{}, errNotFound
	}
	return *conv, nil
}

// Messages returns the history of a conversation, oldest first.
func (s *Store) Messages(conversationID int64) []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := slices.Clone(s.messages[conversationID])
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return msgs
}

// AddMessage persists a message and returns it with its id and timestamp.
func (s *Store) AddMessage(m chat.Message) chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.id()
	m.CreatedAt = s.now()
	m.Provisional = false
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], m)

	if conv, ok := s.conversations[m.ConversationID]; ok {
		conv.UpdatedAt = m.CreatedAt
	}

	return m
}

// DeleteConversations removes the listed conversations owned by userID and
// returns how many were removed.
func (s *Store) DeleteConversations(userID int64, ids ...int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, id := range ids {
		conv, ok := s.conversations[id]
		if !ok || conv.UserID != userID {
			continue
		}
		delete(s.conversations, id)
		delete(s.messages, id)
		n++
	}
	return n
}
