package handlers

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ai-thumbnail-pro/internal/telegram"
	"ai-thumbnail-pro/internal/wizard"
)

const callbackPrefix = "tw"

const (
	actTitle     = "title"
	actCatch     = "catch"
	actNext      = "next"
	actImage     = "img"
	actImageNext = "imgnext"
	actRestart   = "restart"
)

const (
	textIntro = "🎬 AI サムネイル Pro\n\n" +
		"ステップ 1: 動画を送ってください。\n" +
		"・動画ファイル: キャプションに動画の簡単な説明を書いてください。\n" +
		"・YouTube: 動画のURLをメッセージで送ってください。"
	textHelp = "使い方\n\n" +
		"1. 動画ファイル（説明をキャプションに）かYouTubeのURLを送る\n" +
		"2. タイトルとキャッチコピーを選ぶ\n" +
		"3. ベース画像を選ぶ\n" +
		"4. 完成したサムネイルをダウンロードする\n\n" +
		"/restart - 最初からやり直す\n" +
		"/help - このヘルプ"
	textUnknownCommand = "❌ 不明なコマンドです。/help を参照してください。"
	textSendSource     = "📹 動画ファイル（キャプションに説明）かYouTubeのURLを送ってください。"
	textUseButtons     = "ボタンで選択してください。/restart で最初からやり直せます。"
	textBusy           = "⏳ 処理中です。しばらくお待ちください。"
	textWrongStep      = "この操作は現在のステップでは使えません。/restart で最初からやり直せます。"
	textDownloadFailed = "❌ 動画のダウンロードに失敗しました。もう一度送ってください。"
	textStaleButton    = "このボタンは古くなっています。"
	textNotYours       = "このメニューはあなた用ではありません。"
	textPickBoth       = "タイトルとキャッチコピーを1つずつ選んでください。"
	textPickImage      = "画像を1つ選んでください。"
	textPickImageMenu  = "ステップ 3: ベースにする画像を選んでください。"
	textDone           = "✅ サムネイルが完成しました！"
	textExportFailed   = "⚠️ 一部の画像を書き出せませんでした。"
	labelNext          = "次へ ▶"
	labelRestart       = "🔄 最初からやり直す"
	selectedMark       = "✅ "
)

type callback struct {
	Owner  int64
	Action string
	Index  int
}

func cb(ownerID int64, parts ...string) string {
	return fmt.Sprintf("%s:%d:%s", callbackPrefix, ownerID, strings.Join(parts, ":"))
}

func parseCallback(data string) (callback, bool) {
	parts := strings.Split(strings.TrimSpace(data), ":")
	if len(parts) < 3 || parts[0] != callbackPrefix {
		return callback{}, false
	}

	owner, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return callback{}, false
	}

	out := callback{Owner: owner, Action: parts[2], Index: -1}
	switch out.Action {
	case actTitle, actCatch, actImage:
		if len(parts) < 4 {
			return callback{}, false
		}
		idx, err := strconv.Atoi(parts[3])
		if err != nil || idx < 0 {
			return callback{}, false
		}
		out.Index = idx
	case actNext, actImageNext, actRestart:
	default:
		return callback{}, false
	}
	return out, true
}

func selectionText(st wizard.State, ui chatUI) string {
	var b strings.Builder
	b.WriteString("ステップ 2: タイトルとキャッチコピーを1つずつ選んでください。\n\n")

	b.WriteString("📝 タイトル\n")
	for i, t := range st.Titles {
		b.WriteString(fmt.Sprintf("%s%d. %s\n", mark(i == ui.TitleIdx), i+1, t))
	}
	b.WriteString("\n💬 キャッチコピー\n")
	for i, c := range st.Catchphrases {
		b.WriteString(fmt.Sprintf("%s%d. %s\n", mark(i == ui.CatchIdx), i+1, c))
	}
	return strings.TrimSpace(b.String())
}

func selectionKeyboard(ownerID int64, st wizard.State, ui chatUI) telegram.Keyboard {
	var rows [][]tgbotapi.InlineKeyboardButton

	rows = append(rows, indexRow("T", len(st.Titles), ui.TitleIdx, func(i int) string {
		return cb(ownerID, actTitle, strconv.Itoa(i))
	}))
	rows = append(rows, indexRow("C", len(st.Catchphrases), ui.CatchIdx, func(i int) string {
		return cb(ownerID, actCatch, strconv.Itoa(i))
	}))

	title, catchphrase := selectedPair(st, ui)
	if st.CanSubmitSelection(title, catchphrase) {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(labelNext, cb(ownerID, actNext)),
		})
	}
	rows = append(rows, restartRow(ownerID))

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func imageKeyboard(ownerID int64, st wizard.State, ui chatUI) telegram.Keyboard {
	var rows [][]tgbotapi.InlineKeyboardButton

	rows = append(rows, indexRow("画像 ", len(st.Candidates), ui.CandidateIdx, func(i int) string {
		return cb(ownerID, actImage, strconv.Itoa(i))
	}))

	if st.CanSubmitImage(selectedCandidate(st, ui)) {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(labelNext, cb(ownerID, actImageNext)),
		})
	}
	rows = append(rows, restartRow(ownerID))

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func restartKeyboard(ownerID int64) telegram.Keyboard {
	return tgbotapi.NewInlineKeyboardMarkup(restartRow(ownerID))
}

func emptyKeyboard() telegram.Keyboard {
	return telegram.Keyboard{InlineKeyboard: [][]telegram.KeyboardButton{}}
}

func restartRow(ownerID int64) []tgbotapi.InlineKeyboardButton {
	return []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData(labelRestart, cb(ownerID, actRestart)),
	}
}

func indexRow(prefix string, n, selected int, data func(int) string) []tgbotapi.InlineKeyboardButton {
	row := make([]tgbotapi.InlineKeyboardButton, 0, n)
	for i := 0; i < n; i++ {
		label := mark(i == selected) + prefix + strconv.Itoa(i+1)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, data(i)))
	}
	return row
}

func candidateCaption(i int, c wizard.Candidate) string {
	if label := c.Label(); label != "" {
		return fmt.Sprintf("画像 %d (%s)", i+1, label)
	}
	return fmt.Sprintf("画像 %d", i+1)
}

func selectedPair(st wizard.State, ui chatUI) (string, string) {
	var title, catchphrase string
	if ui.TitleIdx >= 0 && ui.TitleIdx < len(st.Titles) {
		title = st.Titles[ui.TitleIdx]
	}
	if ui.CatchIdx >= 0 && ui.CatchIdx < len(st.Catchphrases) {
		catchphrase = st.Catchphrases[ui.CatchIdx]
	}
	return title, catchphrase
}

func selectedCandidate(st wizard.State, ui chatUI) string {
	if ui.CandidateIdx >= 0 && ui.CandidateIdx < len(st.Candidates) {
		return st.Candidates[ui.CandidateIdx].ImageRef
	}
	return ""
}

func mark(on bool) string {
	if on {
		return selectedMark
	}
	return ""
}
