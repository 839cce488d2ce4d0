package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/brainfrog/Telegram-Kraken-Bot/internal/core"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/exchange"
)

// MinimumSource supplies minimum order sizes by asset alt name, used to fill
// pairs the venue reports without an explicit minimum.
type MinimumSource interface {
	MinOrderSizes(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Snapshot holds the venue lookup tables. It is immutable once built;
// Registry swaps complete snapshots so readers never see a partial state.
type Snapshot struct {
	assetsByCode map[string]core.Asset
	assetsByAlt  map[string]core.Asset
	pairsByCoin  map[string]core.Pair // configured pairs, keyed by coin alt name
	pairsByAlt   map[string]core.Pair // all tradable pairs, keyed by short code
	coins        []string             // configured coin alt names, sorted
}

type Registry struct {
	exchange  exchange.Exchange
	minimums  MinimumSource
	usedPairs map[string]string
	log       *logrus.Entry

	snap atomic.Pointer[Snapshot]
}

func New(ex exchange.Exchange, minimums MinimumSource, usedPairs map[string]string, log *logrus.Logger) *Registry {
	return &Registry{
		exchange:  ex,
		minimums:  minimums,
		usedPairs: usedPairs,
		log:       log.WithField("component", "registry"),
	}
}

// Refresh rebuilds the lookup tables from the venue and swaps them in
// atomically. The previous snapshot stays active if anything fails.
func (r *Registry) Refresh(ctx context.Context) error {
	assets, err := r.exchange.Assets(ctx)
	if err != nil {
		return fmt.Errorf("load assets: %w", err)
	}
	pairs, err := r.exchange.AssetPairs(ctx)
	if err != nil {
		return fmt.Errorf("load asset pairs: %w", err)
	}

	var scraped map[string]decimal.Decimal
	if r.minimums != nil {
		scraped, err = r.minimums.MinOrderSizes(ctx)
		if err != nil {
			r.log.WithError(err).Warn("minimum order size scrape failed")
			scraped = nil
		}
	}

	snap := &Snapshot{
		assetsByCode: assets,
		assetsByAlt:  make(map[string]core.Asset, len(assets)),
		pairsByCoin:  make(map[string]core.Pair, len(r.usedPairs)),
		pairsByAlt:   make(map[string]core.Pair, len(pairs)),
	}
	for _, asset := range assets {
		snap.assetsByAlt[asset.AltName] = asset
	}
	for code, pair := range pairs {
		// Dark pool entries duplicate the regular pair under a .d suffix.
		if strings.HasSuffix(code, ".d") {
			continue
		}
		if pair.MinVolume == nil && scraped != nil {
			if base, ok := assets[pair.Base]; ok {
				if min, ok := scraped[base.AltName]; ok {
					pair.MinVolume = &min
				}
			}
		}
		snap.pairsByAlt[pair.AltCode] = pair
	}

	for coin, quote := range r.usedPairs {
		pair, ok := snap.pairsByAlt[coin+quote]
		if !ok {
			return fmt.Errorf("configured pair %s/%s is not tradable on the venue", coin, quote)
		}
		snap.pairsByCoin[coin] = pair
		snap.coins = append(snap.coins, coin)
	}
	sort.Strings(snap.coins)

	r.snap.Store(snap)
	r.log.WithFields(logrus.Fields{
		"assets": len(snap.assetsByCode),
		"pairs":  len(snap.pairsByAlt),
		"coins":  snap.coins,
	}).Info("lookup tables refreshed")
	return nil
}

func (r *Registry) snapshot() *Snapshot {
	snap := r.snap.Load()
	if snap == nil {
		return &Snapshot{}
	}
	return snap
}

// Coins returns the configured coin alt names in stable order.
func (r *Registry) Coins() []string {
	return r.snapshot().coins
}

// Pair returns the configured trading pair for a coin alt name.
func (r *Registry) Pair(coin string) (core.Pair, bool) {
	pair, ok := r.snapshot().pairsByCoin[coin]
	return pair, ok
}

// PairByAltCode resolves a short pair code as found in order listings.
func (r *Registry) PairByAltCode(alt string) (core.Pair, bool) {
	pair, ok := r.snapshot().pairsByAlt[alt]
	return pair, ok
}

// Asset resolves a venue asset code.
func (r *Registry) Asset(code string) (core.Asset, bool) {
	asset, ok := r.snapshot().assetsByCode[code]
	return asset, ok
}

// AssetByAlt resolves an asset alt name.
func (r *Registry) AssetByAlt(alt string) (core.Asset, bool) {
	asset, ok := r.snapshot().assetsByAlt[alt]
	return asset, ok
}

// AltName returns the display name for a venue asset code, falling back to
// the code itself for assets the venue does not list.
func (r *Registry) AltName(code string) string {
	if asset, ok := r.snapshot().assetsByCode[code]; ok {
		return asset.AltName
	}
	return code
}

// MinVolume returns the minimum order volume for a coin, or nil when no
// minimum is known from either the venue or the published table.
func (r *Registry) MinVolume(coin string) *decimal.Decimal {
	pair, ok := r.snapshot().pairsByCoin[coin]
	if !ok {
		return nil
	}
	return pair.MinVolume
}

// WSNames returns the websocket pair names of all configured pairs.
func (r *Registry) WSNames() []string {
	snap := r.snapshot()
	names := make([]string, 0, len(snap.coins))
	for _, coin := range snap.coins {
		if ws := snap.pairsByCoin[coin].WSName; ws != "" {
			names = append(names, ws)
		}
	}
	return names
}
