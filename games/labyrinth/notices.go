package labyrinth

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	msgSessionUnavailable = "notice.session_unavailable"
	msgMoverOnlyMoves     = "notice.mover_only_moves"
	msgWaitingForHelper   = "notice.waiting_for_helper"
	msgChooseBranchFirst  = "notice.choose_branch_first"
	msgOutOfBounds        = "notice.out_of_bounds"
	msgWall               = "notice.wall"
	msgPuzzleActive       = "notice.puzzle_active"
	msgUnregisteredDoor   = "notice.unregistered_door"
	msgClueSent           = "notice.clue_sent"
	msgNoPuzzleForClue    = "notice.no_puzzle_clue"
	msgHelperOnlyClues    = "notice.helper_only_clues"
	msgDoorOpened         = "notice.door_opened"
	msgNoPuzzleForAnswer  = "notice.no_puzzle_answer"
	msgMoverOnlyAnswers   = "notice.mover_only_answers"
	msgUnknownBranch      = "notice.unknown_branch"
	msgNoDecision         = "notice.no_decision"
	msgUnknownDirection   = "notice.unknown_direction"
	msgNotInSession       = "notice.not_in_session"
	msgAlreadyInSession   = "notice.already_in_session"
	msgUnknownCommand     = "notice.unknown_command"

	msgDecisionPoint = "decision.message"
	msgBranchChosen  = "branch.chosen"
	msgReward        = "reward.text"

	msgMoverLeft      = "game_over.mover_left"
	msgHelperLeft     = "game_over.helper_left"
	msgSessionExpired = "game_over.expired"
)

var supportedLanguages = []language.Tag{
	language.Spanish,
	language.English,
}

var languageMatcher = language.NewMatcher(supportedLanguages)

// ParseLanguage maps a user supplied tag ("es", "en-GB", ...) onto one of the
// languages notices are written in.
func ParseLanguage(s string) (language.Tag, error) {
	t, err := language.Parse(s)
	if err != nil {
		return language.Und, fmt.Errorf("invalid language %q: %w", s, err)
	}

	_, idx, conf := languageMatcher.Match(t)
	if conf == language.No {
		return language.Und, fmt.Errorf("unsupported language %q", s)
	}
	return supportedLanguages[idx], nil
}

// NewPrinter returns a printer for notices in tag.
func NewPrinter(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag)
}

func init() {
	es := language.Spanish

	message.SetString(es, msgSessionUnavailable, "Juego no encontrado o ya lleno.")
	message.SetString(es, msgMoverOnlyMoves, "Solo el Mago puede moverse por el laberinto.")
	message.SetString(es, msgWaitingForHelper, "Espera a que la Sacerdotisa se una al juego antes de avanzar.")
	message.SetString(es, msgChooseBranchFirst, "Debes elegir un camino antes de avanzar.")
	message.SetString(es, msgOutOfBounds, "No puedes moverte fuera del laberinto.")
	message.SetString(es, msgWall, "¡Esa es una pared impenetrable!")
	message.SetString(es, msgPuzzleActive, "Esta puerta requiere que la Sacerdotisa y tú resuelvan el acertijo.")
	message.SetString(es, msgUnregisteredDoor, "Esta puerta está sellada por un misterio desconocido. No hay acertijo para activarla.")
	message.SetString(es, msgClueSent, "Pista enviada al Mago. Esperando su respuesta...")
	message.SetString(es, msgNoPuzzleForClue, "No hay un acertijo activo para enviar pistas.")
	message.SetString(es, msgHelperOnlyClues, "Solo la Sacerdotisa puede enviar pistas.")
	message.SetString(es, msgDoorOpened, "¡Has resuelto el acertijo! La puerta se ha abierto. Ahora puedes avanzar.")
	message.SetString(es, msgNoPuzzleForAnswer, "No hay un acertijo activo para responder.")
	message.SetString(es, msgMoverOnlyAnswers, "Solo el Mago puede enviar respuestas.")
	message.SetString(es, msgUnknownBranch, "Ese camino no existe en esta encrucijada.")
	message.SetString(es, msgNoDecision, "No hay ninguna encrucijada ante ti.")
	message.SetString(es, msgUnknownDirection, "Esa dirección no existe en este laberinto.")
	message.SetString(es, msgNotInSession, "Primero debes crear un juego o unirte a uno.")
	message.SetString(es, msgAlreadyInSession, "Ya formas parte de un juego.")
	message.SetString(es, msgUnknownCommand, "Orden desconocida.")
	message.SetString(es, msgDecisionPoint, "Has llegado a una encrucijada mística. ¿Qué camino eliges?")
	message.SetString(es, msgBranchChosen, "Has elegido el camino: %s")
	message.SetString(es, msgReward, "¡Correcto! Mago, has resuelto el acertijo: \"%s\". Como recompensa, recibe este hechizo de protección: \"%s\"")
	message.SetString(es, msgMoverLeft, "Tu pareja (el Mago) se ha desconectado. El juego ha terminado.")
	message.SetString(es, msgHelperLeft, "Tu pareja (la Sacerdotisa) se ha desconectado. El juego ha terminado.")
	message.SetString(es, msgSessionExpired, "El juego ha terminado por inactividad.")

	en := language.English

	message.SetString(en, msgSessionUnavailable, "Game not found or already full.")
	message.SetString(en, msgMoverOnlyMoves, "Only the Mage can move through the maze.")
	message.SetString(en, msgWaitingForHelper, "Wait for the Priestess to join before moving on.")
	message.SetString(en, msgChooseBranchFirst, "You must choose a path before moving on.")
	message.SetString(en, msgOutOfBounds, "You cannot leave the maze.")
	message.SetString(en, msgWall, "That is an impenetrable wall!")
	message.SetString(en, msgPuzzleActive, "This door needs the Priestess and you to solve the riddle first.")
	message.SetString(en, msgUnregisteredDoor, "This door is sealed by an unknown mystery. There is no riddle to open it.")
	message.SetString(en, msgClueSent, "Clue sent to the Mage. Waiting for an answer...")
	message.SetString(en, msgNoPuzzleForClue, "There is no active riddle to send clues for.")
	message.SetString(en, msgHelperOnlyClues, "Only the Priestess can send clues.")
	message.SetString(en, msgDoorOpened, "You solved the riddle! The door has opened. You may move on.")
	message.SetString(en, msgNoPuzzleForAnswer, "There is no active riddle to answer.")
	message.SetString(en, msgMoverOnlyAnswers, "Only the Mage can send answers.")
	message.SetString(en, msgUnknownBranch, "That path does not exist at this crossroads.")
	message.SetString(en, msgNoDecision, "There is no crossroads in front of you.")
	message.SetString(en, msgUnknownDirection, "That direction does not exist in this maze.")
	message.SetString(en, msgNotInSession, "Create or join a game first.")
	message.SetString(en, msgAlreadyInSession, "You are already part of a game.")
	message.SetString(en, msgUnknownCommand, "Unknown command.")
	message.SetString(en, msgDecisionPoint, "You have reached a mystic crossroads. Which path do you choose?")
	message.SetString(en, msgBranchChosen, "You chose the path: %s")
	message.SetString(en, msgReward, "Correct! Mage, you solved the riddle: \"%s\". As a reward, receive this protection spell: \"%s\"")
	message.SetString(en, msgMoverLeft, "Your partner (the Mage) disconnected. The game is over.")
	message.SetString(en, msgHelperLeft, "Your partner (the Priestess) disconnected. The game is over.")
	message.SetString(en, msgSessionExpired, "The game ended after a period of inactivity.")
}
