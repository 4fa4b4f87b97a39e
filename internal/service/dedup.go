package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/oshikatsu-collection/oshidata/internal/affiliate"
	"github.com/oshikatsu-collection/oshidata/internal/event"
	"github.com/oshikatsu-collection/oshidata/internal/logger"
	"github.com/oshikatsu-collection/oshidata/internal/model"
	"github.com/oshikatsu-collection/oshidata/internal/parser"
	"github.com/oshikatsu-collection/oshidata/internal/store"
	"github.com/oshikatsu-collection/oshidata/internal/youtube"
)

// sameSpotMeters is how close two same-named locations must be to count as one.
const sameSpotMeters = 50.0

const (
	ReasonVideoID   = "same_video_id"
	ReasonTitleDate = "same_title_and_date"
	ReasonNameAddr  = "same_name_and_address"
	ReasonTabelog   = "same_tabelog_url"
	ReasonNearby    = "same_name_nearby"
)

type DedupOptions struct {
	CelebrityID string // episodes only; empty = all
	DryRun      bool
}

type DedupGroup struct {
	KeeperID     string   `json:"keeper_id"`
	KeeperName   string   `json:"keeper_name"`
	DuplicateIDs []string `json:"duplicate_ids"`
	Reason       string   `json:"reason"`
}

type DedupReport struct {
	Kind         string       `json:"kind"`
	Groups       []DedupGroup `json:"groups"`
	LinksMoved   int          `json:"links_moved"`
	LinksDropped int          `json:"links_dropped"`
	Deleted      int          `json:"deleted"`
	DryRun       bool         `json:"dry_run"`
}

type Deduper struct {
	store store.Store
	bus   event.Bus
}

func NewDeduper(st store.Store, bus event.Bus) *Deduper {
	return &Deduper{store: st, bus: bus}
}

// unionFind joins indices; the root is always the smallest index of a set.
type unionFind struct {
	parent []int
	reason []string
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), reason: make([]string, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int, reason string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.reason[ra] == "" {
		u.reason[ra] = reason
	}
}

// groups returns sets with more than one member, members in index order.
func (u *unionFind) groups() [][]int {
	byRoot := map[int][]int{}
	for i := range u.parent {
		r := u.find(i)
		byRoot[r] = append(byRoot[r], i)
	}
	var out [][]int
	for _, members := range byRoot {
		if len(members) > 1 {
			out = append(out, members)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a][0] < out[b][0] })
	return out
}

// joinByKey unions all indices sharing a non-empty key.
func (u *unionFind) joinByKey(keys []string, reason string) {
	first := map[string]int{}
	for i, k := range keys {
		if k == "" {
			continue
		}
		if j, ok := first[k]; ok {
			u.union(j, i, reason)
		} else {
			first[k] = i
		}
	}
}

func episodeVideoID(e model.Episode) string {
	if e.Platform == model.PlatformTMDB {
		return ""
	}
	if id, err := youtube.ExtractVideoID(e.ID); err == nil {
		return id
	}
	if id, err := youtube.ExtractVideoID(e.VideoURL); err == nil {
		return id
	}
	return ""
}

func episodeTitleKey(e model.Episode) string {
	if e.Date == nil {
		return ""
	}
	title := parser.NormalizeName(parser.CleanTitle(e.Title))
	if title == "" {
		return ""
	}
	key := e.CelebrityID + "|" + title + "|" + e.Date.UTC().Format("2006-01-02")
	// 第1話 and 第2話 on the same day stay apart
	if season, episode := parser.ParseSeasonEpisode(e.Title); episode > 0 {
		key += fmt.Sprintf("|s%de%d", season, episode)
	}
	return key
}

// joinTitleMatches unions rows sharing a title key, but never two rows that
// carry different video ids: those are separate uploads (前編/後編 posted the
// same day). Rows without a video id join the first row of their key that has one.
func (u *unionFind) joinTitleMatches(titleKeys, videoKeys []string) {
	anchor := map[string]int{}
	var pending []int
	for i, k := range titleKeys {
		if k == "" {
			continue
		}
		if videoKeys[i] == "" {
			pending = append(pending, i)
			continue
		}
		if _, ok := anchor[k]; !ok {
			anchor[k] = i
		}
	}
	for _, i := range pending {
		k := titleKeys[i]
		if j, ok := anchor[k]; ok {
			u.union(j, i, ReasonTitleDate)
			continue
		}
		// no video row for this key: id-less rows merge among themselves
		anchor[k] = i
	}
}

// DedupEpisodes merges episodes that are the same video or the same
// title on the same day, moving location links to the kept row.
func (d *Deduper) DedupEpisodes(ctx context.Context, opts DedupOptions) (*DedupReport, error) {
	eps, err := d.store.ListEpisodes(ctx, store.EpisodeFilter{CelebrityID: opts.CelebrityID})
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	links, err := d.store.ListEpisodeLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list episode_locations: %w", err)
	}
	linkCount := map[string]int{}
	for _, l := range links {
		linkCount[l.EpisodeID]++
	}

	uf := newUnionFind(len(eps))
	videoKeys := make([]string, len(eps))
	titleKeys := make([]string, len(eps))
	for i, e := range eps {
		videoKeys[i] = episodeVideoID(e)
		titleKeys[i] = episodeTitleKey(e)
	}
	uf.joinByKey(videoKeys, ReasonVideoID)
	uf.joinTitleMatches(titleKeys, videoKeys)

	report := &DedupReport{Kind: "episodes", DryRun: opts.DryRun}
	keeperOf := map[string]string{}
	var keepers []model.Episode
	var deleteIDs []string

	for _, members := range uf.groups() {
		sort.Slice(members, func(a, b int) bool {
			return betterEpisode(eps[members[a]], eps[members[b]], linkCount)
		})
		keeper := eps[members[0]]
		changed := false
		group := DedupGroup{KeeperID: keeper.ID, KeeperName: keeper.Title, Reason: uf.reason[uf.find(members[0])]}
		for _, m := range members[1:] {
			dup := eps[m]
			group.DuplicateIDs = append(group.DuplicateIDs, dup.ID)
			keeperOf[dup.ID] = keeper.ID
			deleteIDs = append(deleteIDs, dup.ID)
			if fillEpisode(&keeper, dup) {
				changed = true
			}
		}
		sort.Strings(group.DuplicateIDs)
		report.Groups = append(report.Groups, group)
		if changed {
			keepers = append(keepers, keeper)
		}
	}
	sort.Slice(report.Groups, func(a, b int) bool { return report.Groups[a].KeeperID < report.Groups[b].KeeperID })

	moved, dropped := remapLinks(links, keeperOf, true)
	report.LinksMoved, report.LinksDropped, report.Deleted = len(moved), len(dropped), len(deleteIDs)

	if opts.DryRun || len(deleteIDs) == 0 {
		return report, nil
	}
	if err := d.apply(ctx, moved, dropped, func() error {
		if err := d.store.UpsertEpisodes(ctx, keepers); err != nil {
			return err
		}
		return d.store.DeleteEpisodes(ctx, deleteIDs)
	}); err != nil {
		return report, err
	}
	d.publish("episodes", opts.CelebrityID, report.Deleted)
	logger.L().Infof("Deduper: episodes groups=%d deleted=%d links moved=%d dropped=%d",
		len(report.Groups), report.Deleted, report.LinksMoved, report.LinksDropped)
	return report, nil
}

// DedupLocations merges locations with the same name and address, the same
// tabelog page, or the same name within sameSpotMeters.
func (d *Deduper) DedupLocations(ctx context.Context, opts DedupOptions) (*DedupReport, error) {
	locs, err := d.store.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	links, err := d.store.ListEpisodeLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list episode_locations: %w", err)
	}
	linkCount := map[string]int{}
	for _, l := range links {
		linkCount[l.LocationID]++
	}

	uf := newUnionFind(len(locs))
	addrKeys := make([]string, len(locs))
	tabelogKeys := make([]string, len(locs))
	byName := map[string][]int{}
	for i, l := range locs {
		addrKeys[i] = locationKey(l.Name, l.Address)
		if u, err := affiliate.NormalizeTabelogURL(l.TabelogURL); err == nil {
			tabelogKeys[i] = u
		}
		if n := parser.NormalizeName(l.Name); n != "" {
			byName[n] = append(byName[n], i)
		}
	}
	uf.joinByKey(addrKeys, ReasonNameAddr)
	uf.joinByKey(tabelogKeys, ReasonTabelog)
	for _, idx := range byName {
		for a := 0; a < len(idx); a++ {
			for b := a + 1; b < len(idx); b++ {
				la, lb := locs[idx[a]], locs[idx[b]]
				if la.HasCoordinates() && lb.HasCoordinates() &&
					haversineMeters(la.Latitude, la.Longitude, lb.Latitude, lb.Longitude) <= sameSpotMeters {
					uf.union(idx[a], idx[b], ReasonNearby)
				}
			}
		}
	}

	report := &DedupReport{Kind: "locations", DryRun: opts.DryRun}
	keeperOf := map[string]string{}
	var keepers []model.Location
	var deleteIDs []string

	for _, members := range uf.groups() {
		sort.Slice(members, func(a, b int) bool {
			return betterLocation(locs[members[a]], locs[members[b]], linkCount)
		})
		keeper := locs[members[0]]
		group := DedupGroup{KeeperID: keeper.ID, KeeperName: keeper.Name, Reason: uf.reason[uf.find(members[0])]}
		for _, m := range members[1:] {
			dup := locs[m]
			group.DuplicateIDs = append(group.DuplicateIDs, dup.ID)
			keeperOf[dup.ID] = keeper.ID
			deleteIDs = append(deleteIDs, dup.ID)
			mergeLocation(&keeper, dup)
		}
		sort.Strings(group.DuplicateIDs)
		report.Groups = append(report.Groups, group)
		keepers = append(keepers, keeper)
	}
	sort.Slice(report.Groups, func(a, b int) bool { return report.Groups[a].KeeperID < report.Groups[b].KeeperID })

	moved, dropped := remapLinks(links, keeperOf, false)
	report.LinksMoved, report.LinksDropped, report.Deleted = len(moved), len(dropped), len(deleteIDs)

	if opts.DryRun || len(deleteIDs) == 0 {
		return report, nil
	}
	if err := d.apply(ctx, moved, dropped, func() error {
		if err := d.store.UpsertLocations(ctx, keepers); err != nil {
			return err
		}
		return d.store.DeleteLocations(ctx, deleteIDs)
	}); err != nil {
		return report, err
	}
	d.publish("locations", "", report.Deleted)
	logger.L().Infof("Deduper: locations groups=%d deleted=%d links moved=%d dropped=%d",
		len(report.Groups), report.Deleted, report.LinksMoved, report.LinksDropped)
	return report, nil
}

// apply writes link changes before touching the rows they point at.
func (d *Deduper) apply(ctx context.Context, moved []model.EpisodeLocation, dropped []string, rows func() error) error {
	if err := d.store.UpsertEpisodeLocations(ctx, moved); err != nil {
		return fmt.Errorf("move links: %w", err)
	}
	if err := d.store.DeleteEpisodeLocations(ctx, dropped); err != nil {
		return fmt.Errorf("drop links: %w", err)
	}
	if err := rows(); err != nil {
		return fmt.Errorf("merge rows: %w", err)
	}
	return nil
}

func (d *Deduper) publish(kind, celebrityID string, deleted int) {
	if d.bus == nil || deleted == 0 {
		return
	}
	d.bus.Publish(event.EventDedupCompleted, event.DedupCompleted{Kind: kind, CelebrityID: celebrityID, Deleted: deleted})
}

// remapLinks points links of duplicates at their keeper. A link that would
// repeat an existing (episode, location) pair is dropped.
func remapLinks(links []model.EpisodeLocation, keeperOf map[string]string, byEpisode bool) (moved []model.EpisodeLocation, dropped []string) {
	side := func(l model.EpisodeLocation) string {
		if byEpisode {
			return l.EpisodeID
		}
		return l.LocationID
	}

	pairs := map[string]bool{}
	var pending []model.EpisodeLocation
	for _, l := range links {
		if _, ok := keeperOf[side(l)]; ok {
			pending = append(pending, l)
			continue
		}
		pairs[l.EpisodeID+"|"+l.LocationID] = true
	}
	sort.Slice(pending, func(a, b int) bool { return pending[a].ID < pending[b].ID })

	for _, l := range pending {
		if byEpisode {
			l.EpisodeID = keeperOf[l.EpisodeID]
		} else {
			l.LocationID = keeperOf[l.LocationID]
		}
		pair := l.EpisodeID + "|" + l.LocationID
		if pairs[pair] {
			dropped = append(dropped, l.ID)
			continue
		}
		pairs[pair] = true
		moved = append(moved, l)
	}
	return moved, dropped
}

// betterEpisode orders keeper candidates: most links, has thumbnail,
// youtube platform, smallest id.
func betterEpisode(a, b model.Episode, links map[string]int) bool {
	if links[a.ID] != links[b.ID] {
		return links[a.ID] > links[b.ID]
	}
	if (a.ThumbnailURL != "") != (b.ThumbnailURL != "") {
		return a.ThumbnailURL != ""
	}
	if (a.Platform == model.PlatformYouTube) != (b.Platform == model.PlatformYouTube) {
		return a.Platform == model.PlatformYouTube
	}
	return a.ID < b.ID
}

func betterLocation(a, b model.Location, links map[string]int) bool {
	aa, ab := affiliate.HasActiveTabelog(a), affiliate.HasActiveTabelog(b)
	if aa != ab {
		return aa
	}
	if links[a.ID] != links[b.ID] {
		return links[a.ID] > links[b.ID]
	}
	if fa, fb := filledFields(a), filledFields(b); fa != fb {
		return fa > fb
	}
	return a.ID < b.ID
}

func filledFields(l model.Location) int {
	n := 0
	for _, s := range []string{l.Address, l.Category, l.Description, l.Phone, l.Website, l.TabelogURL, l.Image} {
		if s != "" {
			n++
		}
	}
	if l.HasCoordinates() {
		n++
	}
	if len(l.Tags) > 0 {
		n++
	}
	return n
}

// fillEpisode copies fields the keeper lacks from dup.
func fillEpisode(keeper *model.Episode, dup model.Episode) bool {
	changed := false
	fill := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
			changed = true
		}
	}
	fill(&keeper.Description, dup.Description)
	fill(&keeper.ThumbnailURL, dup.ThumbnailURL)
	fill(&keeper.VideoURL, dup.VideoURL)
	fill(&keeper.Category, dup.Category)
	if keeper.Date == nil && dup.Date != nil {
		keeper.Date = dup.Date
		changed = true
	}
	if dup.ViewCount > keeper.ViewCount {
		keeper.ViewCount = dup.ViewCount
		changed = true
	}
	return changed
}

func mergeLocation(keeper *model.Location, dup model.Location) {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&keeper.Address, dup.Address)
	fill(&keeper.Description, dup.Description)
	fill(&keeper.Phone, dup.Phone)
	fill(&keeper.Website, dup.Website)
	fill(&keeper.Image, dup.Image)
	fill(&keeper.TabelogURL, dup.TabelogURL)
	if keeper.Category == "" || keeper.Category == model.CategoryOther {
		if dup.Category != "" {
			keeper.Category = dup.Category
		}
	}
	if !keeper.HasCoordinates() && dup.HasCoordinates() {
		keeper.Latitude, keeper.Longitude = dup.Latitude, dup.Longitude
	}
	if keeper.AffiliateInfo.Tabelog == nil && dup.AffiliateInfo.Tabelog != nil {
		keeper.AffiliateInfo.Tabelog = dup.AffiliateInfo.Tabelog
	}
	keeper.Tags = mergeTags(keeper.Tags, dup.Tags)
}
