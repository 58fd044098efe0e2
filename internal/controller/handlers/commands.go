package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/school_scheduler/internal/controller/formatting"
	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/Freeeeeet/school_scheduler/internal/session"
	"go.uber.org/zap"
)

// handleStart обрабатывает команду /start
func (h *Handlers) handleStart(ctx context.Context, req *request) (string, error) {
	sess, err := h.sessions.Get(ctx, req.chatID)
	if err != nil {
		return "", err
	}

	if sess != nil {
		return fmt.Sprintf("👋 Bonjour, %s !\n\n%s", sess.Actor.DisplayName, helpFor(sess.Actor.Profile)), nil
	}

	return "👋 Bienvenue sur le planning de l'école !\n\n" +
		"Pour commencer, connectez-vous avec le code reçu de l'école :\n" +
		"/login CODE", nil
}

// handleHelp обрабатывает команду /help
func (h *Handlers) handleHelp(ctx context.Context, req *request) (string, error) {
	sess, err := h.sessions.Get(ctx, req.chatID)
	if err != nil {
		return "", err
	}

	if sess == nil {
		return "📚 Aide\n\n" +
			"/login CODE - Se connecter\n" +
			"/help - Afficher cette aide", nil
	}

	return helpFor(sess.Actor.Profile), nil
}

// helpVisitor список команд для каждого профиля
type helpVisitor struct{}

func (helpVisitor) Parent() string {
	return "👪 Commandes parent :\n" +
		"/teachers - Enseignants de votre classe\n" +
		"/slots N [AAAA-MM-JJ] - Créneaux libres d'un enseignant\n" +
		"/book N [prénom] - Réserver un créneau\n" +
		"/mybookings - Mes rendez-vous\n" +
		"/cancel N - Annuler un rendez-vous"
}

func (helpVisitor) Teacher() string {
	return "🎓 Commandes enseignant :\n" +
		"/myslots - Mes créneaux\n" +
		"/addslot AAAA-MM-JJ HH:MM HH:MM - Ajouter un créneau\n" +
		"/addslots AAAA-MM-JJ HH:MM HH:MM MINUTES - Découper une plage\n" +
		"/delslot N - Supprimer un créneau libre\n" +
		"/done N - Marquer un rendez-vous terminé\n" +
		"/cancel N - Libérer un créneau réservé\n\n" +
		meetingHelp
}

func (helpVisitor) Partner() string {
	return meetingHelp
}

func (helpVisitor) Admin() string {
	return "👑 Commandes administrateur :\n" +
		"/codes - Codes d'accès\n" +
		"/addcode CODE PROFIL [CLASSE] [Nom] - Créer un code\n" +
		"/togglecode N - Activer / désactiver un code\n" +
		"/delcode N - Supprimer un code\n" +
		"/recent - Derniers créneaux\n" +
		"/cancel N - Libérer un créneau réservé\n\n" +
		meetingHelp
}

const meetingHelp = "🗳 Réunions :\n" +
	"/meetings - Sondages en cours\n" +
	"/newmeeting Titre | AAAA-MM-JJ HH:MM HH:MM; ... - Proposer une réunion\n" +
	"/respond N oui|non - Donner sa disponibilité\n" +
	"/confirm M N - Confirmer un créneau (créateur)"

func helpFor(p model.Profile) string {
	text, err := model.VisitProfile[string](p, helpVisitor{})
	if err != nil {
		return "Tapez /logout puis reconnectez-vous."
	}
	return text + "\n\n/whoami - Mon profil\n/logout - Se déconnecter"
}

// handleLogin /login CODE
func (h *Handlers) handleLogin(ctx context.Context, req *request) (string, error) {
	args := req.args()
	if len(args) != 1 {
		return "", usageError("un seul code attendu")
	}

	actor, err := h.accessService.Login(ctx, args[0])
	if err != nil {
		return "", err
	}

	if err := h.sessions.Set(ctx, req.chatID, session.New(actor)); err != nil {
		return "", err
	}

	h.logger.Info("Chat logged in",
		zap.Int64("chat_id", req.chatID),
		zap.String("profile", string(actor.Profile)),
	)

	return fmt.Sprintf("✅ Connecté : %s (%s)\n\n%s",
		actor.DisplayName,
		formatting.GetProfileDisplay(actor.Profile),
		helpFor(actor.Profile),
	), nil
}

// handleLogout /logout
func (h *Handlers) handleLogout(ctx context.Context, req *request) (string, error) {
	if err := h.sessions.Delete(ctx, req.chatID); err != nil {
		return "", err
	}
	return "👋 Vous êtes déconnecté.", nil
}

// handleWhoAmI /whoami
func (h *Handlers) handleWhoAmI(_ context.Context, req *request) (string, error) {
	actor := req.session.Actor

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👤 %s\n", actor.DisplayName))
	sb.WriteString(formatting.GetProfileDisplay(actor.Profile))
	if actor.ClassName != nil {
		sb.WriteString(fmt.Sprintf("\n🏫 Classe : %s", *actor.ClassName))
	}
	return sb.String(), nil
}
