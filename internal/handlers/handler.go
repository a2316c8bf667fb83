package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ai-thumbnail-pro/internal/imageref"
	"ai-thumbnail-pro/internal/session"
	"ai-thumbnail-pro/internal/telegram"
	"ai-thumbnail-pro/internal/wizard"
)

// Messenger is the part of the Telegram client the wizard talks through.
type Messenger interface {
	SendTyping(chatID int64)
	SendText(chatID int64, text string) error
	SendTextWithKeyboard(chatID int64, text string, kb telegram.Keyboard) (int, error)
	EditTextWithKeyboard(chatID int64, messageID int, text string, kb telegram.Keyboard) error
	AnswerCallback(callbackID, text string, alert bool) error
	SendPhotoDataURL(chatID int64, dataURL string, caption string) error
	SendDocument(chatID int64, name string, data []byte, caption string) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, string, error)
}

type Options struct {
	Telegram      Messenger
	Sessions      *session.Store
	MaxVideoBytes int64
	Logger        *slog.Logger
}

type Handler struct {
	tg            Messenger
	sessions      *session.Store
	ui            *uiStore
	maxVideoBytes int64
	logger        *slog.Logger
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		tg:            opts.Telegram,
		sessions:      opts.Sessions,
		ui:            newUIStore(),
		maxVideoBytes: opts.MaxVideoBytes,
		logger:        logger,
	}
}

func sessionKey(chatID, userID int64) string {
	return fmt.Sprintf("tg:%d:%d", chatID, userID)
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil || update.Message.From == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if msg.IsCommand() {
		return h.handleCommand(chatID, userID, msg)
	}

	if video, ok := videoAttachment(msg); ok {
		return h.handleVideo(ctx, chatID, userID, video, msg.Caption)
	}

	if msg.Text != "" {
		return h.handleText(ctx, chatID, userID, msg.Text)
	}

	return nil
}

func (h *Handler) handleCommand(chatID, userID int64, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start", "restart":
		h.restart(chatID, userID)
		return h.tg.SendText(chatID, textIntro)
	case "help":
		return h.tg.SendText(chatID, textHelp)
	default:
		return h.tg.SendText(chatID, textUnknownCommand)
	}
}

type video struct {
	FileID   string
	FileName string
	Size     int64
}

func videoAttachment(msg *tgbotapi.Message) (video, bool) {
	if msg.Video != nil {
		return video{FileID: msg.Video.FileID, FileName: msg.Video.FileName, Size: int64(msg.Video.FileSize)}, true
	}
	if msg.Document != nil && isVideoMime(msg.Document.MimeType) {
		return video{FileID: msg.Document.FileID, FileName: msg.Document.FileName, Size: int64(msg.Document.FileSize)}, true
	}
	return video{}, false
}

func (h *Handler) handleVideo(ctx context.Context, chatID, userID int64, v video, caption string) error {
	sess := h.sessions.GetOrCreate(sessionKey(chatID, userID))

	st := sess.Wizard.State()
	if st.Step != wizard.StepInput || st.Overlay != wizard.OverlayNone {
		return h.reject(chatID, wizard.ErrWrongStep)
	}
	if err := wizard.ValidateVideoSize(v.Size, h.maxVideoBytes); err != nil {
		return h.reject(chatID, err)
	}

	h.tg.SendTyping(chatID)
	data, _, err := h.tg.DownloadFile(ctx, v.FileID)
	if err != nil {
		h.logger.Error("video download failed", "chat_id", chatID, "err", err)
		return h.tg.SendText(chatID, textDownloadFailed)
	}

	return h.runStep(ctx, chatID, userID, sess, wizard.SubmitSource{
		Source: wizard.FileSource(data, v.FileName, caption),
	})
}

func (h *Handler) handleText(ctx context.Context, chatID, userID int64, text string) error {
	sess := h.sessions.GetOrCreate(sessionKey(chatID, userID))

	switch classifyText(text) {
	case inputYouTube, inputLink:
		return h.runStep(ctx, chatID, userID, sess, wizard.SubmitSource{Source: wizard.YouTubeSource(text)})
	case inputText:
		if sess.Wizard.State().Step == wizard.StepInput {
			return h.tg.SendText(chatID, textSendSource)
		}
		return h.tg.SendText(chatID, textUseButtons)
	}
	return nil
}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil || q.From == nil {
		return nil
	}

	c, ok := parseCallback(q.Data)
	if !ok {
		return nil
	}
	if c.Owner != q.From.ID {
		_ = h.tg.AnswerCallback(q.ID, textNotYours, true)
		return nil
	}

	chatID := q.Message.Chat.ID
	msgID := q.Message.MessageID

	if c.Action == actRestart {
		_ = h.tg.AnswerCallback(q.ID, "OK", false)
		h.restart(chatID, c.Owner)
		return h.tg.SendText(chatID, textIntro)
	}

	sess := h.sessions.GetOrCreate(sessionKey(chatID, c.Owner))
	st := sess.Wizard.State()
	ui := h.ui.Get(chatID, c.Owner)

	wantStep := wizard.StepTitles
	if c.Action == actImage || c.Action == actImageNext {
		wantStep = wizard.StepImages
	}
	if st.Step != wantStep || st.Overlay != wizard.OverlayNone || ui.MessageID != msgID {
		_ = h.tg.AnswerCallback(q.ID, textStaleButton, false)
		return nil
	}

	switch c.Action {
	case actTitle, actCatch:
		n := len(st.Titles)
		if c.Action == actCatch {
			n = len(st.Catchphrases)
		}
		if c.Index >= n {
			_ = h.tg.AnswerCallback(q.ID, textStaleButton, false)
			return nil
		}
		ui = h.ui.Update(chatID, c.Owner, func(u *chatUI) {
			if c.Action == actTitle {
				u.TitleIdx = c.Index
			} else {
				u.CatchIdx = c.Index
			}
		})
		_ = h.tg.AnswerCallback(q.ID, "OK", false)
		return h.tg.EditTextWithKeyboard(chatID, msgID, selectionText(st, ui), selectionKeyboard(c.Owner, st, ui))

	case actNext:
		title, catchphrase := selectedPair(st, ui)
		if !st.CanSubmitSelection(title, catchphrase) {
			_ = h.tg.AnswerCallback(q.ID, textPickBoth, true)
			return nil
		}
		_ = h.tg.AnswerCallback(q.ID, "OK", false)
		_ = h.tg.EditTextWithKeyboard(chatID, msgID, fmt.Sprintf("📝 %s\n💬 %s", title, catchphrase), emptyKeyboard())
		return h.runStep(ctx, chatID, c.Owner, sess, wizard.SubmitSelection{Title: title, Catchphrase: catchphrase})

	case actImage:
		if c.Index >= len(st.Candidates) {
			_ = h.tg.AnswerCallback(q.ID, textStaleButton, false)
			return nil
		}
		ui = h.ui.Update(chatID, c.Owner, func(u *chatUI) { u.CandidateIdx = c.Index })
		_ = h.tg.AnswerCallback(q.ID, "OK", false)
		return h.tg.EditTextWithKeyboard(chatID, msgID, textPickImageMenu, imageKeyboard(c.Owner, st, ui))

	case actImageNext:
		ref := selectedCandidate(st, ui)
		if !st.CanSubmitImage(ref) {
			_ = h.tg.AnswerCallback(q.ID, textPickImage, true)
			return nil
		}
		_ = h.tg.AnswerCallback(q.ID, "OK", false)
		_ = h.tg.EditTextWithKeyboard(chatID, msgID, candidateCaption(ui.CandidateIdx, st.Candidates[ui.CandidateIdx]), emptyKeyboard())
		return h.runStep(ctx, chatID, c.Owner, sess, wizard.SubmitImage{ImageRef: ref})
	}

	return nil
}

func (h *Handler) restart(chatID, userID int64) {
	sess := h.sessions.GetOrCreate(sessionKey(chatID, userID))
	sess.Wizard.Restart()
	h.ui.Reset(chatID, userID)
}

// runStep shows the loading message, runs the step and renders the outcome.
// Results of a wizard restarted meanwhile are not shown.
func (h *Handler) runStep(ctx context.Context, chatID, userID int64, sess session.Session, action wizard.Action) error {
	p, err := sess.Wizard.Start(action)
	if err != nil {
		return h.reject(chatID, err)
	}

	h.tg.SendTyping(chatID)
	if msg := sess.Wizard.State().LoadingMessage; msg != "" {
		if err := h.tg.SendText(chatID, "⏳ "+msg); err != nil {
			h.logger.Warn("send loading message failed", "chat_id", chatID, "err", err)
		}
	}

	st := p.Run(ctx)
	if !p.Current() {
		return nil
	}
	return h.render(chatID, userID, st)
}

func (h *Handler) reject(chatID int64, err error) error {
	switch {
	case errors.Is(err, wizard.ErrBusy):
		return h.tg.SendText(chatID, textBusy)
	case errors.Is(err, wizard.ErrWrongStep):
		return h.tg.SendText(chatID, textWrongStep)
	case wizard.IsValidation(err):
		return h.tg.SendText(chatID, "⚠️ "+wizard.ValidationMessage(err))
	default:
		h.logger.Error("wizard rejected action", "chat_id", chatID, "err", err)
		return h.tg.SendText(chatID, "❌ "+err.Error())
	}
}

func (h *Handler) render(chatID, userID int64, st wizard.State) error {
	if st.Failed() {
		_, err := h.tg.SendTextWithKeyboard(chatID, "❌ "+st.Error, restartKeyboard(userID))
		return err
	}

	switch st.Step {
	case wizard.StepTitles:
		ui := h.ui.Reset(chatID, userID)
		msgID, err := h.tg.SendTextWithKeyboard(chatID, selectionText(st, ui), selectionKeyboard(userID, st, ui))
		if err != nil {
			return err
		}
		h.ui.Update(chatID, userID, func(u *chatUI) { u.MessageID = msgID })
		return nil

	case wizard.StepImages:
		for i, c := range st.Candidates {
			if err := h.tg.SendPhotoDataURL(chatID, c.ImageRef, candidateCaption(i, c)); err != nil {
				return err
			}
		}
		ui := h.ui.Update(chatID, userID, func(u *chatUI) { u.CandidateIdx = -1 })
		msgID, err := h.tg.SendTextWithKeyboard(chatID, textPickImageMenu, imageKeyboard(userID, st, ui))
		if err != nil {
			return err
		}
		h.ui.Update(chatID, userID, func(u *chatUI) { u.MessageID = msgID })
		return nil

	case wizard.StepResult:
		return h.sendResults(chatID, userID, st)

	default:
		return h.tg.SendText(chatID, textIntro)
	}
}

func (h *Handler) sendResults(chatID, userID int64, st wizard.State) error {
	failed := 0
	for i, img := range st.FinalImages {
		data, err := imageref.ToPNG(img)
		if err != nil {
			h.logger.Error("thumbnail export failed", "chat_id", chatID, "index", i, "err", err)
			failed++
			continue
		}
		name := fmt.Sprintf("thumbnail_option_%d.png", i+1)
		if err := h.tg.SendDocument(chatID, name, data, ""); err != nil {
			return err
		}
	}

	text := textDone
	if failed > 0 {
		text = strings.Join([]string{textDone, textExportFailed}, "\n")
	}
	_, err := h.tg.SendTextWithKeyboard(chatID, text, restartKeyboard(userID))
	return err
}
