package bot

import (
	"sync"

	tele "gopkg.in/telebot.v4"
)

type outgoing struct {
	text   string
	markup *tele.ReplyMarkup
	edit   bool
}

// fakeContext implements the parts of tele.Context the handlers touch.
type fakeContext struct {
	tele.Context

	update tele.Update

	mu        sync.Mutex
	store     map[string]interface{}
	out       []outgoing
	responses []*tele.CallbackResponse
}

func textUpdate(id int, chatID, userID int64, text string) *fakeContext {
	return &fakeContext{update: tele.Update{
		ID: id,
		Message: &tele.Message{
			Text:   text,
			Chat:   &tele.Chat{ID: chatID, Type: tele.ChatPrivate},
			Sender: &tele.User{ID: userID},
		},
	}}
}

func callbackUpdate(id int, chatID, userID int64, unique, data string) *fakeContext {
	return &fakeContext{update: tele.Update{
		ID: id,
		Callback: &tele.Callback{
			ID:     "cb",
			Unique: unique,
			Data:   data,
			Sender: &tele.User{ID: userID},
			Message: &tele.Message{
				ID:   7,
				Chat: &tele.Chat{ID: chatID, Type: tele.ChatPrivate},
			},
		},
	}}
}

func (c *fakeContext) Update() tele.Update { return c.update }

func (c *fakeContext) Callback() *tele.Callback { return c.update.Callback }

func (c *fakeContext) Message() *tele.Message {
	if c.update.Callback != nil {
		return c.update.Callback.Message
	}
	return c.update.Message
}

func (c *fakeContext) Sender() *tele.User {
	if c.update.Callback != nil {
		return c.update.Callback.Sender
	}
	if c.update.Message != nil {
		return c.update.Message.Sender
	}
	return nil
}

func (c *fakeContext) Chat() *tele.Chat {
	if m := c.Message(); m != nil {
		return m.Chat
	}
	return nil
}

func (c *fakeContext) Text() string {
	if m := c.Message(); m != nil {
		return m.Text
	}
	return ""
}

func (c *fakeContext) Send(what interface{}, opts ...interface{}) error {
	return c.record(what, false, opts)
}

func (c *fakeContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return c.record(what, c.update.Callback != nil, opts)
}

func (c *fakeContext) record(what interface{}, edit bool, opts []interface{}) error {
	o := outgoing{text: what.(string), edit: edit}
	for _, opt := range opts {
		switch v := opt.(type) {
		case *tele.SendOptions:
			if v != nil {
				o.markup = v.ReplyMarkup
			}
		case *tele.ReplyMarkup:
			o.markup = v
		}
	}
	c.mu.Lock()
	c.out = append(c.out, o)
	c.mu.Unlock()
	return nil
}

func (c *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(resp) == 0 {
		c.responses = append(c.responses, nil)
		return nil
	}
	c.responses = append(c.responses, resp[0])
	return nil
}

func (c *fakeContext) Get(key string) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store[key]
}

func (c *fakeContext) Set(key string, val interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = make(map[string]interface{})
	}
	c.store[key] = val
}

func (c *fakeContext) last() outgoing {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.out) == 0 {
		return outgoing{}
	}
	return c.out[len(c.out)-1]
}
