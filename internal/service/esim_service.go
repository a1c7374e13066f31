package service

import (
	"context"
	"strings"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/domainerr"
	"github.com/Sebas931/Local-sim-main/internal/dto"
	"github.com/Sebas931/Local-sim-main/internal/model"
	"github.com/Sebas931/Local-sim-main/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const esimVentanaPorVencer = 3 * 24 * time.Hour

type ESimService interface {
	Create(ctx context.Context, req dto.CrearESimRequest) (*dto.ESimResponse, error)
	CreateBatch(ctx context.Context, req dto.CrearESimLoteRequest) (*dto.CrearESimLoteResponse, error)
	Sell(ctx context.Context, id uuid.UUID, req dto.VenderESimRequest) (*dto.ESimResponse, error)
	MarkInactive(ctx context.Context, id uuid.UUID) (*dto.ESimResponse, error)
	// RegenerateQR is the only way back to disponible.
	RegenerateQR(ctx context.Context, id uuid.UUID, req dto.RegenerarQRRequest) (*dto.ESimResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.ESimResponse, error)
	List(ctx context.Context, f dto.ESimFilter) (*dto.ESimListResponse, error)
	Stats(ctx context.Context) (*dto.ESimStatsResponse, error)
}

type esimService struct {
	repo repository.ESimRepository
	now  func() time.Time
}

func NewESimService(repo repository.ESimRepository) ESimService {
	return &esimService{repo: repo, now: time.Now}
}

func (s *esimService) Create(ctx context.Context, req dto.CrearESimRequest) (*dto.ESimResponse, error) {
	e, err := nuevaESim(req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, e); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, domainerr.Conflict("ya existe una eSIM con ICCID %s o número %s", e.ICCID, e.NumeroTelefono)
		}
		return nil, domainerr.Internal(err, "crear eSIM")
	}
	return esimToResponse(e), nil
}

// CreateBatch inserts row by row; a rejected row is reported and skipped.
func (s *esimService) CreateBatch(ctx context.Context, req dto.CrearESimLoteRequest) (*dto.CrearESimLoteResponse, error) {
	if len(req.ESims) == 0 {
		return nil, domainerr.Validation("el lote no tiene eSIMs")
	}
	resp := &dto.CrearESimLoteResponse{Omitidas: map[string]string{}}
	for _, in := range req.ESims {
		_, err := s.Create(ctx, in)
		if err == nil {
			resp.Creadas++
			continue
		}
		switch domainerr.CodeOf(err) {
		case domainerr.CodeConflict:
			resp.Omitidas[in.ICCID] = "duplicada"
		case domainerr.CodeValidation:
			resp.Omitidas[in.ICCID] = err.Error()
		default:
			return nil, err
		}
	}
	log.Info().Int("creadas", resp.Creadas).Int("omitidas", len(resp.Omitidas)).Msg("esim: carga masiva")
	return resp, nil
}

func nuevaESim(req dto.CrearESimRequest) (*model.ESim, error) {
	iccid := strings.TrimSpace(req.ICCID)
	numero := model.SoloDigitos(req.NumeroTelefono)
	if iccid == "" || numero == "" {
		return nil, domainerr.Validation("iccid y numero_telefono son requeridos")
	}
	return &model.ESim{
		ICCID:          iccid,
		NumeroTelefono: numero,
		Estado:         model.ESimDisponible,
		QRCodeData:     trimPtr(req.QRCodeData),
		QRCodeURL:      trimPtr(req.QRCodeURL),
		Operador:       trimPtr(req.Operador),
		Observaciones:  trimPtr(req.Observaciones),
	}, nil
}

// Sell stamps the plan and derives the expiry date from its length in days.
func (s *esimService) Sell(ctx context.Context, id uuid.UUID, req dto.VenderESimRequest) (*dto.ESimResponse, error) {
	if req.PlanDias < 1 {
		return nil, domainerr.Validation("plan_dias debe ser mayor a cero")
	}
	var ventaID *uuid.UUID
	if req.VentaID != nil && *req.VentaID != "" {
		v, err := uuid.Parse(*req.VentaID)
		if err != nil {
			return nil, domainerr.Validation("venta_id inválido")
		}
		ventaID = &v
	}

	return s.transicion(ctx, id, func(e *model.ESim, now time.Time) error {
		if e.Estado != model.ESimDisponible {
			return domainerr.State("la eSIM %s no está disponible: estado %s", e.ICCID, e.Estado)
		}
		dias := req.PlanDias
		nombre := strings.TrimSpace(req.PlanNombre)
		vence := now.AddDate(0, 0, dias)
		e.Estado = model.ESimVendida
		e.FechaVenta = &now
		e.FechaVencimiento = &vence
		e.PlanDias = &dias
		e.PlanNombre = &nombre
		e.VentaID = ventaID
		return nil
	})
}

func (s *esimService) MarkInactive(ctx context.Context, id uuid.UUID) (*dto.ESimResponse, error) {
	return s.transicion(ctx, id, func(e *model.ESim, _ time.Time) error {
		if e.Estado == model.ESimInactiva {
			return domainerr.State("la eSIM %s ya está inactiva", e.ICCID)
		}
		e.Estado = model.ESimInactiva
		return nil
	})
}

func (s *esimService) RegenerateQR(ctx context.Context, id uuid.UUID, req dto.RegenerarQRRequest) (*dto.ESimResponse, error) {
	return s.transicion(ctx, id, func(e *model.ESim, now time.Time) error {
		if e.Estado != model.ESimVencida && e.Estado != model.ESimInactiva {
			return domainerr.State("solo se regenera el QR de eSIMs vencidas o inactivas (estado %s)", e.Estado)
		}
		e.Estado = model.ESimDisponible
		e.HistorialRegeneraciones++
		e.UltimaRegeneracion = &now
		e.FechaVenta = nil
		e.FechaVencimiento = nil
		e.PlanDias = nil
		e.PlanNombre = nil
		e.VentaID = nil
		if qr := trimPtr(req.QRCodeData); qr != nil {
			e.QRCodeData = qr
		}
		if url := trimPtr(req.QRCodeURL); url != nil {
			e.QRCodeURL = url
		}
		return nil
	})
}

// transicion loads the eSIM locked, applies fn and saves it.
func (s *esimService) transicion(ctx context.Context, id uuid.UUID, fn func(e *model.ESim, now time.Time) error) (*dto.ESimResponse, error) {
	var e *model.ESim
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		e, err = s.repo.FindByIDTx(tx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return domainerr.NotFound("eSIM %s no encontrada", id)
			}
			return err
		}
		anterior := e.Estado
		if err := fn(e, s.now()); err != nil {
			return err
		}
		if err := s.repo.UpdateTx(tx, e); err != nil {
			return err
		}
		log.Info().
			Str("iccid", e.ICCID).
			Str("de", string(anterior)).
			Str("a", string(e.Estado)).
			Msg("esim: cambio de estado")
		return nil
	})
	if txErr != nil {
		return nil, asDomain(txErr, "actualizar eSIM")
	}
	return esimToResponse(e), nil
}

func (s *esimService) Get(ctx context.Context, id uuid.UUID) (*dto.ESimResponse, error) {
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domainerr.NotFound("eSIM %s no encontrada", id)
		}
		return nil, domainerr.Internal(err, "buscar eSIM")
	}
	return esimToResponse(e), nil
}

func (s *esimService) List(ctx context.Context, f dto.ESimFilter) (*dto.ESimListResponse, error) {
	filter := repository.ESimFilter{Q: f.Q, Page: f.Page, Limit: f.Limit}
	if f.Estado != "" {
		estado, ok := model.ParseESimEstado(f.Estado)
		if !ok {
			return nil, domainerr.Validation("estado inválido: %s", f.Estado)
		}
		filter.Estado = estado
	}
	esims, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, domainerr.Internal(err, "listar eSIMs")
	}
	resp := &dto.ESimListResponse{Data: make([]dto.ESimResponse, len(esims)), Total: total, Page: f.Page, Limit: f.Limit}
	for i := range esims {
		resp.Data[i] = *esimToResponse(&esims[i])
	}
	return resp, nil
}

func (s *esimService) Stats(ctx context.Context) (*dto.ESimStatsResponse, error) {
	conteo, err := s.repo.CountByEstado(ctx)
	if err != nil {
		return nil, domainerr.Internal(err, "contar eSIMs")
	}
	now := s.now()
	proximas, err := s.repo.PorVencer(ctx, now, now.Add(esimVentanaPorVencer))
	if err != nil {
		return nil, domainerr.Internal(err, "eSIMs por vencer")
	}
	return &dto.ESimStatsResponse{
		Disponibles: conteo[model.ESimDisponible],
		Vendidas:    conteo[model.ESimVendida],
		Vencidas:    conteo[model.ESimVencida],
		Inactivas:   conteo[model.ESimInactiva],
		PorVencer:   int64(len(proximas)),
	}, nil
}

func esimToResponse(e *model.ESim) *dto.ESimResponse {
	return &dto.ESimResponse{
		ID:                      e.ID.String(),
		ICCID:                   e.ICCID,
		NumeroTelefono:          e.NumeroTelefono,
		Estado:                  string(e.Estado),
		QRCodeData:              e.QRCodeData,
		QRCodeURL:               e.QRCodeURL,
		FechaVenta:              timePtr(e.FechaVenta),
		FechaVencimiento:        timePtr(e.FechaVencimiento),
		PlanDias:                e.PlanDias,
		PlanNombre:              e.PlanNombre,
		VentaID:                 uuidPtr(e.VentaID),
		HistorialRegeneraciones: e.HistorialRegeneraciones,
		UltimaRegeneracion:      timePtr(e.UltimaRegeneracion),
		Operador:                e.Operador,
		Observaciones:           e.Observaciones,
	}
}
