package service

import (
	"context"
	"strings"

	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/clock"
	plandomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/plan/domain"
	"github.com/1212falcon1212/shopfiy-saas-sub001/pkg/db"
	"github.com/1212falcon1212/shopfiy-saas-sub001/pkg/money"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  plandomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  plandomain.Repository
}

func NewService(p ServiceParam) plandomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("plan.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req plandomain.CreatePlanRequest) (*plandomain.Plan, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	plan := &plandomain.Plan{
		ID:                 s.genID.Generate(),
		Code:               strings.TrimSpace(req.Code),
		BillingType:        req.BillingType,
		Interval:           req.Interval,
		Name:               stringMapToJSON(req.Name),
		Description:        stringMapToJSON(req.Description),
		Features:           featuresToJSON(req.Features),
		PriceByCurrency:    stringMapToJSON(req.PriceByCurrency),
		CappedAmount:       req.CappedAmount,
		TrialDays:          req.TrialDays,
		IsTest:             req.IsTest,
		IsDefaultOnInstall: req.IsDefaultOnInstall,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Insert(ctx, s.db, plan); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, plandomain.ErrPlanCodeTaken
		}
		return nil, err
	}
	s.log.Info("plan created",
		zap.String("code", plan.Code),
		zap.String("billing_type", string(plan.BillingType)),
	)
	return plan, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*plandomain.Plan, error) {
	p, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, plandomain.ErrPlanNotFound
	}
	return p, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (*plandomain.Plan, error) {
	p, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, plandomain.ErrPlanNotFound
	}
	return p, nil
}

func (s *Service) ListActive(ctx context.Context, lang string) ([]plandomain.PlanView, error) {
	plans, err := s.repo.ListActive(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := make([]plandomain.PlanView, 0, len(plans))
	for i := range plans {
		out = append(out, s.Localize(&plans[i], lang))
	}
	return out, nil
}

// Localize projects a plan into a single language, falling back to
// English for fields the requested language does not cover.
func (s *Service) Localize(plan *plandomain.Plan, lang string) plandomain.PlanView {
	lang = normalizeLang(lang)
	return plandomain.PlanView{
		ID:              plan.ID,
		Code:            plan.Code,
		BillingType:     plan.BillingType,
		Interval:        plan.Interval,
		Name:            localizedString(plan.Name, lang),
		Description:     localizedString(plan.Description, lang),
		Features:        localizedStrings(plan.Features, lang),
		PriceByCurrency: jsonToStringMap(plan.PriceByCurrency),
		CappedAmount:    plan.CappedAmount,
		TrialDays:       plan.TrialDays,
		IsTest:          plan.IsTest,
	}
}

func (s *Service) Deactivate(ctx context.Context, id snowflake.ID) error {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsActive {
		return nil
	}
	p.IsActive = false
	p.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, s.db, p)
}

func (s *Service) Price(plan *plandomain.Plan, currency string) (string, error) {
	v, ok := plan.PriceByCurrency[currency]
	if !ok {
		return "", plandomain.ErrMissingCurrency
	}
	price, ok := v.(string)
	if !ok {
		return "", plandomain.ErrMissingCurrency
	}
	return price, nil
}

func validateCreate(req plandomain.CreatePlanRequest) error {
	if strings.TrimSpace(req.Code) == "" {
		return plandomain.ErrInvalidPlan
	}
	if req.TrialDays < 0 {
		return plandomain.ErrInvalidPlan
	}

	switch req.BillingType {
	case plandomain.BillingTypeRecurring:
		if req.Interval == nil {
			return plandomain.ErrIntervalRequired
		}
		if *req.Interval != plandomain.IntervalEvery30Days && *req.Interval != plandomain.IntervalAnnual {
			return plandomain.ErrInvalidPlan
		}
	case plandomain.BillingTypeOneTime, plandomain.BillingTypeUsage:
	default:
		return plandomain.ErrUnknownBilling
	}

	for _, lang := range plandomain.SupportedLanguages {
		if strings.TrimSpace(req.Name[lang]) == "" {
			return plandomain.ErrMissingLocale
		}
	}

	for _, cur := range money.SupportedCurrencies {
		price, ok := req.PriceByCurrency[cur]
		if !ok {
			return plandomain.ErrMissingCurrency
		}
		if _, err := money.Parse(price); err != nil {
			return plandomain.ErrInvalidPlan
		}
	}
	for cur := range req.PriceByCurrency {
		if !money.IsSupportedCurrency(cur) {
			return plandomain.ErrInvalidPlan
		}
	}

	if req.CappedAmount != nil {
		if _, err := money.Parse(*req.CappedAmount); err != nil {
			return plandomain.ErrInvalidPlan
		}
	}
	return nil
}

func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	for _, l := range plandomain.SupportedLanguages {
		if l == lang {
			return lang
		}
	}
	return plandomain.FallbackLanguage
}

func localizedString(m datatypes.JSONMap, lang string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[lang].(string); ok && v != "" {
		return v
	}
	v, _ := m[plandomain.FallbackLanguage].(string)
	return v
}

func localizedStrings(m datatypes.JSONMap, lang string) []string {
	if m == nil {
		return nil
	}
	raw, ok := m[lang]
	if !ok {
		raw, ok = m[plandomain.FallbackLanguage]
		if !ok {
			return nil
		}
	}
	// JSONMap round-trips slices as []interface{}.
	switch vs := raw.(type) {
	case []string:
		return vs
	case []interface{}:
		out := make([]string, 0, len(vs))
		for _, v := range vs {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func stringMapToJSON(m map[string]string) datatypes.JSONMap {
	if len(m) == 0 {
		return datatypes.JSONMap{}
	}
	out := make(datatypes.JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func featuresToJSON(m map[string][]string) datatypes.JSONMap {
	if len(m) == 0 {
		return datatypes.JSONMap{}
	}
	out := make(datatypes.JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func jsonToStringMap(m datatypes.JSONMap) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
