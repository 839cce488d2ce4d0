package session

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/brainfrog/Telegram-Kraken-Bot/internal/config"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/core"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/exchange"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/monitor"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/registry"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/resolver"
)

type Workflow int

const (
	WorkflowNone Workflow = iota
	WorkflowTrade
	WorkflowOrders
	WorkflowSettings
)

type Step int

const (
	StepIdle Step = iota
	StepTradeBuySell
	StepTradeCurrency
	StepTradeSellAllConfirm
	StepTradePrice
	StepTradeVolType
	StepTradeVolume
	StepTradeVolumeAsset
	StepTradeConfirm
	StepOrdersClose
	StepOrdersCloseOrder
	StepSettingsChange
	StepSettingsSave
	StepSettingsConfirm
)

// successors defines the legal step graph per workflow. A handler moving to
// a step outside this table is a programming error and ends the workflow.
var successors = map[Step][]Step{
	StepIdle:                {StepTradeBuySell, StepOrdersClose, StepSettingsChange},
	StepTradeBuySell:        {StepTradeCurrency},
	StepTradeCurrency:       {StepTradeSellAllConfirm, StepTradePrice},
	StepTradeSellAllConfirm: {},
	StepTradePrice:          {StepTradeVolType, StepTradeVolume},
	StepTradeVolType:        {StepTradeVolume, StepTradeVolumeAsset, StepTradeConfirm},
	StepTradeVolume:         {StepTradeConfirm},
	StepTradeVolumeAsset:    {StepTradeVolume, StepTradeConfirm},
	StepTradeConfirm:        {},
	StepOrdersClose:         {StepOrdersCloseOrder},
	StepOrdersCloseOrder:    {},
	StepSettingsChange:      {StepSettingsSave},
	StepSettingsSave:        {StepSettingsConfirm},
	StepSettingsConfirm:     {},
}

type VolMode int

const (
	VolDirect VolMode = iota
	VolQuote
	VolAll
)

// TradeDraft accumulates the answers of one trade conversation.
type TradeDraft struct {
	Side        core.Side
	Coin        string
	Pair        core.Pair
	MarketPrice bool
	Price       decimal.Decimal
	VolMode     VolMode
	Volume      decimal.Decimal
}

// OrdersDraft caches the open orders shown at the start of the orders
// workflow so close-by-button works without refetching.
type OrdersDraft struct {
	Open []core.OpenOrder
}

// SettingsDraft holds the key/value pending confirmation.
type SettingsDraft struct {
	Key   string
	Value any
}

// Session is the conversation state for the single authorized chat. It is
// only ever mutated by the turn currently being processed.
type Session struct {
	ChatID   int64
	Workflow Workflow
	Step     Step

	Trade    TradeDraft
	Orders   OrdersDraft
	Settings SettingsDraft
}

// Clear drops all scratch state and returns the session to idle.
func (s *Session) Clear() {
	s.Workflow = WorkflowNone
	s.Step = StepIdle
	s.Trade = TradeDraft{}
	s.Orders = OrdersDraft{}
	s.Settings = SettingsDraft{}
}

// Reply is one outbound message. Buttons become a reply keyboard; an empty
// grid leaves the current keyboard in place unless RemoveKeyboard is set.
type Reply struct {
	Text           string
	Buttons        [][]string
	RemoveKeyboard bool
}

// StatusSource reports the venue operational state.
type StatusSource interface {
	APIState(ctx context.Context) string
}

type handlerFunc func(ctx context.Context, s *Session, text string) []Reply

// Engine drives the three conversation workflows. The handler table and the
// input patterns are built once at construction.
type Engine struct {
	cfg      config.Config
	cfgPath  string
	exchange exchange.Exchange
	registry *registry.Registry
	resolver *resolver.Resolver
	monitor  *monitor.Monitor
	status   StatusSource
	restart  func()
	log      *logrus.Entry

	handlers map[Step]handlerFunc
	numberRe *regexp.Regexp

	restartPending bool
}

type Options struct {
	Config     config.Config
	ConfigPath string
	Exchange   exchange.Exchange
	Registry   *registry.Registry
	Resolver   *resolver.Resolver
	Monitor    *monitor.Monitor
	Status     StatusSource
	Restart    func()
	Log        *logrus.Logger
}

func NewEngine(opts Options) *Engine {
	e := &Engine{
		cfg:      opts.Config,
		cfgPath:  opts.ConfigPath,
		exchange: opts.Exchange,
		registry: opts.Registry,
		resolver: opts.Resolver,
		monitor:  opts.Monitor,
		status:   opts.Status,
		restart:  opts.Restart,
		log:      opts.Log.WithField("component", "session"),
		numberRe: regexp.MustCompile(`^[0-9]+([.,][0-9]+)?$`),
	}
	e.handlers = map[Step]handlerFunc{
		StepTradeBuySell:        e.tradeBuySell,
		StepTradeCurrency:       e.tradeCurrency,
		StepTradeSellAllConfirm: e.tradeSellAllConfirm,
		StepTradePrice:          e.tradePrice,
		StepTradeVolType:        e.tradeVolType,
		StepTradeVolume:         e.tradeVolume,
		StepTradeVolumeAsset:    e.tradeVolumeAsset,
		StepTradeConfirm:        e.tradeConfirm,
		StepOrdersClose:         e.ordersClose,
		StepOrdersCloseOrder:    e.ordersCloseOrder,
		StepSettingsChange:      e.settingsChange,
		StepSettingsSave:        e.settingsSave,
		StepSettingsConfirm:     e.settingsConfirm,
	}
	return e
}

// Handle processes one inbound message and returns the replies to send.
func (e *Engine) Handle(ctx context.Context, s *Session, text string) []Reply {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "/") {
		return e.command(ctx, s, text)
	}
	if isCancel(text) {
		return e.cancel(s)
	}
	handler, ok := e.handlers[s.Step]
	if !ok {
		// Idle chatter outside a workflow.
		return []Reply{{Text: "Use the buttons below or /cancel", Buttons: commandsKeyboard()}}
	}
	return handler(ctx, s, text)
}

// PendingRestart returns the restart action requested by the last turn, or
// nil. The transport invokes it only after the turn's replies have been
// sent, so the saved-value confirmation reaches the operator before the
// process image is replaced.
func (e *Engine) PendingRestart() func() {
	if !e.restartPending || e.restart == nil {
		e.restartPending = false
		return nil
	}
	e.restartPending = false
	return e.restart
}

// advance moves the session to next after checking the transition table.
func (e *Engine) advance(s *Session, next Step) bool {
	for _, allowed := range successors[s.Step] {
		if allowed == next {
			s.Step = next
			return true
		}
	}
	e.log.WithFields(logrus.Fields{"from": s.Step, "to": next}).Error("illegal step transition")
	s.Clear()
	return false
}

func (e *Engine) cancel(s *Session) []Reply {
	s.Clear()
	return []Reply{{Text: "Canceled...", Buttons: commandsKeyboard()}}
}

func isCancel(text string) bool {
	return strings.EqualFold(text, "cancel")
}

func upper(text string) string {
	return strings.ToUpper(strings.TrimSpace(text))
}

func isYes(text string) bool {
	return strings.EqualFold(text, "yes")
}

func isNo(text string) bool {
	return strings.EqualFold(text, "no")
}

// parseNumber accepts decimal input with either separator.
func (e *Engine) parseNumber(text string) (decimal.Decimal, bool) {
	if !e.numberRe.MatchString(text) {
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(strings.ReplaceAll(text, ",", "."))
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}

func commandsKeyboard() [][]string {
	return [][]string{
		{"/trade", "/orders"},
		{"/balance", "/price"},
		{"/value", "/state"},
		{"/settings", "/reload"},
	}
}

func confirmKeyboard() [][]string {
	return [][]string{{"YES", "NO"}}
}

func cancelKeyboard() [][]string {
	return [][]string{{"CANCEL"}}
}

func errorReply(err error) Reply {
	return Reply{Text: "Error: " + err.Error()}
}
