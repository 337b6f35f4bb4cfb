package world

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/mmo-region/internal/entity"
	"github.com/annel0/mmo-region/internal/eventbus"
	"github.com/annel0/mmo-region/internal/logging"
	"github.com/annel0/mmo-region/internal/proto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ManagerConfig параметры менеджера регионов
type ManagerConfig struct {
	IdleThreshold         time.Duration
	CleanupInterval       time.Duration
	TickInterval          time.Duration
	MaxGenerationAttempts int
	MaxPositionTests      int
	NaviCellSize          float64
}

// DefaultManagerConfig значения по умолчанию
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		IdleThreshold:         5 * time.Minute,
		CleanupInterval:       30 * time.Second,
		TickInterval:          50 * time.Millisecond, // 20 Hz
		MaxGenerationAttempts: 10,
		MaxPositionTests:      defaultMaxPositionTests,
		NaviCellSize:          64,
	}
}

// ArchiveStore хранилище архивов регионов для восстановления
type ArchiveStore interface {
	SaveArchive(ctx context.Context, regionID uint64, data []byte) error
	LoadArchive(ctx context.Context, regionID uint64) ([]byte, error)
}

// RegionIdGenerator выдает адреса экземпляров: старший байт тег, остальное счетчик
type RegionIdGenerator struct {
	tag     uint8
	counter atomic.Uint64
}

const regionCounterMask = 1<<56 - 1

// NewRegionIdGenerator создает генератор с тегом
func NewRegionIdGenerator(tag uint8) *RegionIdGenerator {
	return &RegionIdGenerator{tag: tag}
}

// Next следующий адрес; никогда не равен нулю
func (g *RegionIdGenerator) Next() uint64 {
	n := g.counter.Add(1) & regionCounterMask
	if n == 0 {
		n = g.counter.Add(1) & regionCounterMask
	}
	return uint64(g.tag)<<56 | n
}

// Observe сдвигает счетчик за адрес id с тем же тегом, чтобы Next его не повторил
func (g *RegionIdGenerator) Observe(id uint64) {
	if uint8(id>>56) != g.tag {
		return
	}
	n := id & regionCounterMask
	for {
		cur := g.counter.Load()
		if cur&regionCounterMask >= n || g.counter.CompareAndSwap(cur, n) {
			return
		}
	}
}

// RegionManagerStats счетчики менеджера
type RegionManagerStats struct {
	created   atomic.Int64
	destroyed atomic.Int64
	failed    atomic.Int64
	attempts  atomic.Int64
}

// RegionInfo снимок состояния региона для админки
type RegionInfo struct {
	ID                uint64    `json:"id"`
	Prototype         string    `json:"prototype"`
	Seed              int64     `json:"seed"`
	Private           bool      `json:"private"`
	MatchNumber       int       `json:"match_number,omitempty"`
	Areas             int       `json:"areas"`
	Cells             int       `json:"cells"`
	Entities          int       `json:"entities"`
	Players           int       `json:"players"`
	Generated         bool      `json:"generated"`
	ShutdownRequested bool      `json:"shutdown_requested"`
	GenerationAttempt int       `json:"generation_attempt"`
	CreatedAt         time.Time `json:"created_at"`
	VisitedAt         time.Time `json:"visited_at"`
}

// ManagerOption настраивает менеджер при создании
type ManagerOption func(*RegionManager)

// WithMetrics подключает Prometheus-метрики
func WithMetrics(metrics *RegionMetrics) ManagerOption {
	return func(m *RegionManager) { m.metrics = metrics }
}

// WithEventBus подключает шину событий жизненного цикла
func WithEventBus(bus eventbus.EventBus) ManagerOption {
	return func(m *RegionManager) { m.bus = bus }
}

// WithArchiveStore подключает хранилище архивов
func WithArchiveStore(store ArchiveStore) ManagerOption {
	return func(m *RegionManager) { m.archives = store }
}

// WithClock подменяет источник времени
func WithClock(now func() time.Time) ManagerOption {
	return func(m *RegionManager) { m.now = now }
}

// WithTracer подменяет трассировщик
func WithTracer(tracer trace.Tracer) ManagerOption {
	return func(m *RegionManager) { m.tracer = tracer }
}

// WithLogger подменяет логгер менеджера и его регионов
func WithLogger(log *logging.Logger) ManagerOption {
	return func(m *RegionManager) { m.log = log }
}

// RegionManager реестр и фабрика регионов. Выдает ID областей и ячеек,
// создает регионы с повторными попытками и уничтожает простаивающие.
type RegionManager struct {
	mu      sync.Mutex
	log     *logging.Logger
	catalog proto.Catalog
	config  ManagerConfig

	entities *entity.Manager
	idGen    *RegionIdGenerator
	rng      *rand.Rand

	areaCounter atomic.Uint32
	cellCounter atomic.Uint32

	regions        map[uint64]*Region
	publicRegions  map[proto.Ref]*Region
	privateRegions map[uint64]map[proto.Ref]*Region // WorldView ID -> прототип -> регион
	matches        map[int]uint64
	connections    map[uint64]*Connection
	nextConnection uint64

	cellsMu sync.RWMutex
	cells   map[uint32]*Cell

	now          func() time.Time
	lastCleanup  time.Time
	newGenerator func(proto.RegionGeneratorPrototype) (RegionGenerator, error)

	metrics  *RegionMetrics
	bus      eventbus.EventBus
	archives ArchiveStore
	tracer   trace.Tracer
	stats    RegionManagerStats
}

// NewRegionManager создаёт новый менеджер регионов
func NewRegionManager(catalog proto.Catalog, config ManagerConfig, opts ...ManagerOption) *RegionManager {
	defaults := DefaultManagerConfig()
	if config.MaxGenerationAttempts <= 0 {
		config.MaxGenerationAttempts = defaults.MaxGenerationAttempts
	}
	if config.IdleThreshold <= 0 {
		config.IdleThreshold = defaults.IdleThreshold
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.TickInterval <= 0 {
		config.TickInterval = defaults.TickInterval
	}
	if config.MaxPositionTests <= 0 {
		config.MaxPositionTests = defaults.MaxPositionTests
	}
	if config.NaviCellSize <= 0 {
		config.NaviCellSize = defaults.NaviCellSize
	}

	m := &RegionManager{
		log:            logging.GetRegionLogger(),
		catalog:        catalog,
		config:         config,
		entities:       entity.NewManager(catalog),
		idGen:          NewRegionIdGenerator(1),
		regions:        make(map[uint64]*Region),
		publicRegions:  make(map[proto.Ref]*Region),
		privateRegions: make(map[uint64]map[proto.Ref]*Region),
		matches:        make(map[int]uint64),
		connections:    make(map[uint64]*Connection),
		cells:          make(map[uint32]*Cell),
		now:            time.Now,
		newGenerator:   newRegionGenerator,
		tracer:         otel.Tracer("github.com/annel0/mmo-region/internal/world"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.rng = rand.New(rand.NewSource(m.now().UnixNano()))
	m.lastCleanup = m.now()
	return m
}

// Config текущие параметры
func (m *RegionManager) Config() ManagerConfig { return m.config }

// Entities реестр сущностей процесса
func (m *RegionManager) Entities() *entity.Manager { return m.entities }

// AllocateRegionId новый адрес экземпляра
func (m *RegionManager) AllocateRegionId() uint64 { return m.idGen.Next() }

// AllocateAreaId следующий ID области, начиная с 1
func (m *RegionManager) AllocateAreaId() uint32 { return m.areaCounter.Add(1) }

// AllocateCellId следующий ID ячейки, начиная с 1
func (m *RegionManager) AllocateCellId() uint32 { return m.cellCounter.Add(1) }

// AddCell регистрирует ячейку в реестре менеджера
func (m *RegionManager) AddCell(c *Cell) bool {
	m.cellsMu.Lock()
	defer m.cellsMu.Unlock()
	if _, exists := m.cells[c.id]; exists {
		m.log.Warn("⚠️ Ячейка %d уже зарегистрирована", c.id)
		return false
	}
	m.cells[c.id] = c
	return true
}

// GetCell ячейка по ID
func (m *RegionManager) GetCell(id uint32) *Cell {
	m.cellsMu.RLock()
	defer m.cellsMu.RUnlock()
	return m.cells[id]
}

// RemoveCell убирает ячейку из реестра
func (m *RegionManager) RemoveCell(id uint32) bool {
	m.cellsMu.Lock()
	defer m.cellsMu.Unlock()
	if _, exists := m.cells[id]; !exists {
		return false
	}
	delete(m.cells, id)
	return true
}

// CellCount число зарегистрированных ячеек
func (m *RegionManager) CellCount() int {
	m.cellsMu.RLock()
	defer m.cellsMu.RUnlock()
	return len(m.cells)
}

// CreateRegion создает и генерирует регион. Генерация повторяется с новым seed
// до MaxGenerationAttempts раз. nil при ошибке настроек или исчерпании попыток.
func (m *RegionManager) CreateRegion(ctx context.Context, settings RegionSettings) *Region {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createRegionLocked(ctx, settings, m.config.MaxGenerationAttempts)
}

func (m *RegionManager) createRegionLocked(ctx context.Context, settings RegionSettings, maxAttempts int) *Region {
	ctx, span := m.tracer.Start(ctx, "RegionManager.CreateRegion", trace.WithAttributes(
		attribute.String("region.prototype", string(settings.Prototype)),
		attribute.Int64("region.seed", settings.Seed),
	))
	defer span.End()

	if settings.InstanceAddress == 0 {
		m.log.Warn("⚠️ CreateRegion: нулевой адрес экземпляра")
		span.SetStatus(codes.Error, "zero address")
		return nil
	}
	if _, exists := m.regions[settings.InstanceAddress]; exists {
		m.log.Warn("⚠️ CreateRegion: адрес 0x%X уже занят", settings.InstanceAddress)
		span.SetStatus(codes.Error, "duplicate address")
		return nil
	}
	p, ok := m.catalog.Region(settings.Prototype)
	if !ok {
		m.log.Warn("⚠️ CreateRegion: неизвестный прототип %q", settings.Prototype)
		span.SetStatus(codes.Error, "unknown prototype")
		return nil
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			settings.Seed = m.rng.Int63()
		}
		m.stats.attempts.Add(1)
		if m.metrics != nil {
			m.metrics.generationAttempts.Inc()
		}

		region := newRegion(m, settings.InstanceAddress)
		region.generationAttempt = attempt
		if region.Initialize(settings) {
			m.registerLocked(region)
			span.SetAttributes(attribute.Int("region.attempts", attempt))
			m.log.Info("🌍 Регион %s создан (попытка %d, областей %d)", region, attempt, region.AreaCount())
			m.publish(ctx, EventRegionCreated, RegionEvent{
				RegionID:  region.id,
				Prototype: string(p.Name),
				Seed:      region.randomSeed,
				Attempts:  attempt,
			})
			return region
		}

		m.log.Warn("⚠️ Регион %s: попытка %d из %d не удалась", region, attempt, maxAttempts)
		region.Shutdown()
	}

	m.stats.failed.Add(1)
	if m.metrics != nil {
		m.metrics.generationFailures.Inc()
	}
	span.SetStatus(codes.Error, "generation attempts exhausted")
	m.log.Error("❌ Регион %s не сгенерирован за %d попыток", p.Name, maxAttempts)
	m.publish(ctx, EventRegionGenerationFailed, RegionEvent{
		RegionID:  settings.InstanceAddress,
		Prototype: string(p.Name),
		Seed:      settings.Seed,
		Attempts:  maxAttempts,
		Reason:    "generation attempts exhausted",
	})
	return nil
}

func (m *RegionManager) registerLocked(region *Region) {
	m.regions[region.id] = region
	if region.settings.MatchNumber != 0 {
		m.matches[region.settings.MatchNumber] = region.id
	}
	m.stats.created.Add(1)
	if m.metrics != nil {
		m.metrics.liveRegions.Set(float64(len(m.regions)))
	}
}

// GetRegion регион по адресу
func (m *RegionManager) GetRegion(id uint64) *Region {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regions[id]
}

// GetRegionForMatch регион матча
func (m *RegionManager) GetRegionForMatch(match int) *Region {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regions[m.matches[match]]
}

// RegionCount число живых регионов
func (m *RegionManager) RegionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.regions)
}

// RegionIDs адреса живых регионов по возрастанию
func (m *RegionManager) RegionIDs() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regionIDsLocked()
}

func (m *RegionManager) regionIDsLocked() []uint64 {
	ids := make([]uint64, 0, len(m.regions))
	for id := range m.regions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// DestroyRegion уничтожает регион. false если его нет.
func (m *RegionManager) DestroyRegion(ctx context.Context, id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyRegionLocked(ctx, id, true)
}

// destroyRegionLocked persist=false пропускает сохранение архива
func (m *RegionManager) destroyRegionLocked(ctx context.Context, id uint64, persist bool) bool {
	region, ok := m.regions[id]
	if !ok {
		m.log.Debug("DestroyRegion: регион 0x%X не найден", id)
		return false
	}

	if persist && m.archives != nil && region.IsGenerated() {
		if data, err := region.MarshalArchive(); err != nil {
			m.log.Warn("⚠️ %s: архив не собран: %v", region, err)
		} else if err := m.archives.SaveArchive(ctx, id, data); err != nil {
			m.log.Warn("⚠️ %s: архив не сохранен: %v", region, err)
		}
	}

	region.Shutdown()

	delete(m.regions, id)
	if m.publicRegions[region.PrototypeRef()] == region {
		delete(m.publicRegions, region.PrototypeRef())
	}
	for viewID, byProto := range m.privateRegions {
		for ref, r := range byProto {
			if r == region {
				delete(byProto, ref)
			}
		}
		if len(byProto) == 0 {
			delete(m.privateRegions, viewID)
		}
	}
	if owner := region.settings.Owner; owner != nil {
		owner.removePrivate(id)
	}
	if match := region.settings.MatchNumber; match != 0 && m.matches[match] == id {
		delete(m.matches, match)
	}
	for _, conn := range m.connections {
		if conn.RegionID == id {
			conn.RegionID = 0
		}
	}

	m.stats.destroyed.Add(1)
	if m.metrics != nil {
		m.metrics.regionsDestroyed.Inc()
		m.metrics.liveRegions.Set(float64(len(m.regions)))
	}
	m.log.Info("🗑️ Регион %s уничтожен", region)
	m.publish(ctx, EventRegionDestroyed, RegionEvent{
		RegionID:  id,
		Prototype: string(region.PrototypeRef()),
		Seed:      region.randomSeed,
	})
	return true
}

// Connect регистрирует подключение игрока
func (m *RegionManager) Connect(view *WorldView) *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextConnection++
	conn := &Connection{ID: m.nextConnection, WorldView: view}
	m.connections[conn.ID] = conn
	return conn
}

// Disconnect убирает подключение; регион игрока станет кандидатом на очистку
func (m *RegionManager) Disconnect(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connections, conn.ID)
	conn.RegionID = 0
}

// GetOrGenerateRegionForPlayer находит или создает регион для игрока и переносит его туда.
// Публичные регионы общие для прототипа, приватные принадлежат виду игрока.
func (m *RegionManager) GetOrGenerateRegionForPlayer(ctx context.Context, ref proto.Ref, conn *Connection) *Region {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.catalog.Region(ref)
	if !ok {
		m.log.Warn("⚠️ Перенос игрока: неизвестный регион %q", ref)
		return nil
	}
	if p.Private && (conn == nil || conn.WorldView == nil) {
		m.log.Warn("⚠️ Перенос игрока: приватный регион %s без вида игрока", ref)
		return nil
	}

	var region *Region
	if p.Private {
		region = m.privateRegions[conn.WorldView.ID()][ref]
	} else {
		region = m.publicRegions[ref]
	}

	if region == nil {
		settings := RegionSettings{
			InstanceAddress: m.idGen.Next(),
			Prototype:       ref,
			Seed:            m.rng.Int63(),
			GenerateAreas:   true,
		}
		if p.Private {
			settings.Owner = conn.WorldView
		}
		region = m.createRegionLocked(ctx, settings, m.config.MaxGenerationAttempts)
		if region == nil {
			player := ""
			if conn != nil && conn.WorldView != nil {
				player = conn.WorldView.Owner()
			}
			m.log.Error("❌ Перенос игрока %s в %s не удался", player, ref)
			m.publish(ctx, EventPlayerTransferFailed, RegionEvent{Prototype: string(ref), Player: player, Reason: "region generation failed"})
			return nil
		}
		if p.Private {
			byProto, ok := m.privateRegions[conn.WorldView.ID()]
			if !ok {
				byProto = make(map[proto.Ref]*Region)
				m.privateRegions[conn.WorldView.ID()] = byProto
			}
			byProto[ref] = region
			conn.WorldView.addPrivate(ref, region.id)
		} else {
			m.publicRegions[ref] = region
		}
	}

	if conn != nil {
		if _, known := m.connections[conn.ID]; !known {
			m.connections[conn.ID] = conn
		}
		conn.RegionID = region.id
	}
	region.Visited()
	return region
}

// Tick вызывается циклом симуляции: очищает матрицы коллизий и по интервалу
// уничтожает простаивающие регионы. Возвращает число уничтоженных.
func (m *RegionManager) Tick(ctx context.Context, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	destroyed := 0
	if now.Sub(m.lastCleanup) >= m.config.CleanupInterval {
		destroyed = m.cleanupLocked(ctx, now)
		m.lastCleanup = now
	}
	for _, r := range m.regions {
		r.ClearCollidedEntities()
	}
	return destroyed
}

// CleanupIdleRegions немедленно выполняет очистку
func (m *RegionManager) CleanupIdleRegions(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.lastCleanup = now
	return m.cleanupLocked(ctx, now)
}

// cleanupLocked уничтожает регионы без игроков, простаивающие дольше порога
// или запросившие остановку. Регион с подключенными игроками не уничтожается.
func (m *RegionManager) cleanupLocked(ctx context.Context, now time.Time) int {
	ctx, span := m.tracer.Start(ctx, "RegionManager.Cleanup")
	defer span.End()
	start := time.Now()

	active := make(map[uint64]struct{}, len(m.connections))
	for _, conn := range m.connections {
		if conn.RegionID != 0 {
			active[conn.RegionID] = struct{}{}
		}
	}

	var queue []uint64
	for _, id := range m.regionIDsLocked() {
		region := m.regions[id]
		if _, busy := active[id]; busy {
			if region.shutdownRequested {
				m.log.Debug("⏳ %s: остановка отложена, в регионе есть игроки", region)
			}
			continue
		}
		if region.shutdownRequested || now.Sub(region.visitedTime) > m.config.IdleThreshold {
			queue = append(queue, id)
		}
	}

	destroyed := 0
	for _, id := range queue {
		if m.destroyRegionLocked(ctx, id, true) {
			destroyed++
		}
	}

	span.SetAttributes(attribute.Int("regions.destroyed", destroyed))
	if m.metrics != nil {
		m.metrics.cleanupDuration.Observe(time.Since(start).Seconds())
	}
	if destroyed > 0 {
		m.log.Info("🧹 Очистка: уничтожено %d регионов, осталось %d", destroyed, len(m.regions))
	}
	return destroyed
}

// Run цикл симуляции с интервалом TickInterval до отмены ctx
func (m *RegionManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Tick(ctx, m.now())
		}
	}
}

// Shutdown уничтожает все регионы
func (m *RegionManager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.regionIDsLocked() {
		m.destroyRegionLocked(ctx, id, true)
	}
}

// Info снимок региона; false если его нет
func (m *RegionManager) Info(id uint64) (RegionInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	region, ok := m.regions[id]
	if !ok {
		return RegionInfo{}, false
	}
	return m.infoLocked(region), true
}

// Infos снимки всех регионов по возрастанию адреса
func (m *RegionManager) Infos() []RegionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]RegionInfo, 0, len(m.regions))
	for _, id := range m.regionIDsLocked() {
		result = append(result, m.infoLocked(m.regions[id]))
	}
	return result
}

func (m *RegionManager) infoLocked(r *Region) RegionInfo {
	cells, players := 0, 0
	for _, a := range r.areas {
		cells += len(a.cells)
	}
	for _, conn := range m.connections {
		if conn.RegionID == r.id {
			players++
		}
	}
	return RegionInfo{
		ID:                r.id,
		Prototype:         string(r.PrototypeRef()),
		Seed:              r.randomSeed,
		Private:           r.prototype != nil && r.prototype.Private,
		MatchNumber:       r.settings.MatchNumber,
		Areas:             len(r.areas),
		Cells:             cells,
		Entities:          len(r.entities),
		Players:           players,
		Generated:         r.IsGenerated(),
		ShutdownRequested: r.shutdownRequested,
		GenerationAttempt: r.generationAttempt,
		CreatedAt:         r.createdTime,
		VisitedAt:         r.visitedTime,
	}
}

// RequestShutdown помечает регион для уничтожения при ближайшей очистке
func (m *RegionManager) RequestShutdown(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	region, ok := m.regions[id]
	if !ok {
		return false
	}
	region.RequestShutdown()
	return true
}

// GetStats возвращает статистику менеджера
func (m *RegionManager) GetStats() string {
	return fmt.Sprintf("RegionManager: %d regions, %d created, %d destroyed, %d failed, %d attempts, %d cells",
		m.RegionCount(), m.stats.created.Load(), m.stats.destroyed.Load(),
		m.stats.failed.Load(), m.stats.attempts.Load(), m.CellCount())
}
