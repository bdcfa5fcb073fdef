package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

const dashboardNotifications = 10

type dashboardService struct {
	profiles ports.ProfileRepository
	products ports.ProductRepository
	escrows  ports.EscrowRepository
	notes    ports.NotificationRepository
	log      zerolog.Logger
}

// NewDashboardService returns a DashboardService implementation.
func NewDashboardService(
	profiles ports.ProfileRepository,
	products ports.ProductRepository,
	escrows ports.EscrowRepository,
	notes ports.NotificationRepository,
	log zerolog.Logger,
) ports.DashboardService {
	return &dashboardService{profiles: profiles, products: products, escrows: escrows, notes: notes, log: log}
}

// Load reads the dashboard's parts concurrently; any failure fails the page.
func (s *dashboardService) Load(ctx context.Context, userID string) (*ports.Dashboard, error) {
	var (
		d     ports.Dashboard
		g, gc = errgroup.WithContext(ctx)
	)

	g.Go(func() error {
		p, err := s.profiles.FindByID(gc, userID)
		if err != nil {
			return fmt.Errorf("profile: %w", err)
		}
		d.Profile = p
		d.Balance = p.Balance
		return nil
	})
	g.Go(func() error {
		n, err := s.products.CountByOwner(gc, userID)
		if err != nil {
			return fmt.Errorf("products: %w", err)
		}
		d.ProductsCount = n
		return nil
	})
	g.Go(func() error {
		n, err := s.escrows.CountActiveByUser(gc, userID)
		if err != nil {
			return fmt.Errorf("escrows: %w", err)
		}
		d.ActiveEscrowsCount = n
		return nil
	})
	g.Go(func() error {
		n, err := s.notes.CountUnread(gc, userID)
		if err != nil {
			return fmt.Errorf("notifications: %w", err)
		}
		d.NotificationsCount = n
		return nil
	})
	g.Go(func() error {
		list, err := s.notes.ListByUser(gc, userID, dashboardNotifications)
		if err != nil {
			return fmt.Errorf("notifications: %w", err)
		}
		if list == nil {
			list = []*domain.Notification{}
		}
		d.Notifications = list
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load dashboard: %w", err)
	}
	return &d, nil
}
