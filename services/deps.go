package services

import (
	"context"

	"github.com/Sarvesh28D/FragsHub-sub000/challonge"
	"github.com/Sarvesh28D/FragsHub-sub000/models"
	"github.com/Sarvesh28D/FragsHub-sub000/razorpay"
)

// BracketClient is the part of the Challonge client the services use.
type BracketClient interface {
	CreateTournament(ctx context.Context, p challonge.CreateTournamentParams) (*challonge.Tournament, error)
	GetTournament(ctx context.Context, id int64) (*challonge.Tournament, error)
	StartTournament(ctx context.Context, id int64) (*challonge.Tournament, error)
	FinalizeTournament(ctx context.Context, id int64) (*challonge.Tournament, error)
	DeleteTournament(ctx context.Context, id int64) error
	AddParticipant(ctx context.Context, tournamentID int64, name, misc string) (*challonge.Participant, error)
	ListParticipants(ctx context.Context, tournamentID int64) ([]challonge.Participant, error)
	ListMatches(ctx context.Context, tournamentID int64) ([]challonge.Match, error)
	UpdateMatch(ctx context.Context, tournamentID, matchID, winnerID int64, scoresCSV string) (*challonge.Match, error)
}

// PaymentGateway is the part of the Razorpay client the services use.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, p razorpay.CreateOrderParams) (*razorpay.Order, error)
	CreateRefund(ctx context.Context, paymentID string, p razorpay.CreateRefundParams) (*razorpay.Refund, error)
	ListRefunds(ctx context.Context, paymentID string) ([]razorpay.Refund, error)
}

// Broadcaster публикует события турнира подписчикам (WebSocket).
type Broadcaster interface {
	Publish(roomID, eventType string, payload interface{})
}

type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Relay forwards an admin notification to an external channel.
type Relay interface {
	Relay(ctx context.Context, n models.Notification) error
}

// Approver is implemented by AdminService; payments use it for auto-approval.
type Approver interface {
	ApproveTeam(ctx context.Context, teamID, approvedBy string) (*models.Team, error)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Publish(string, string, interface{}) {}
