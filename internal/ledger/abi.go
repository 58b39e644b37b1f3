package ledger

// contractABI is the subset of the auction ledger contract the coordinator
// talks to.
const contractABI = `[
  {"type":"function","name":"gameState","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"gameId","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"currentRound","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"totalCards","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getPlayers","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"player","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"startGame","stateMutability":"nonpayable","inputs":[{"name":"totalCards","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"settleCard","stateMutability":"nonpayable","inputs":[{"name":"cardId","type":"uint256"},{"name":"winner","type":"address"},{"name":"price","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"finalizeGame","stateMutability":"nonpayable","inputs":[{"name":"winner","type":"address"}],"outputs":[]},
  {"type":"event","name":"PlayerJoined","anonymous":false,"inputs":[{"name":"player","type":"address","indexed":true}]},
  {"type":"event","name":"PlayerLeft","anonymous":false,"inputs":[{"name":"player","type":"address","indexed":true}]},
  {"type":"event","name":"GameStarted","anonymous":false,"inputs":[{"name":"gameId","type":"uint256","indexed":true},{"name":"totalCards","type":"uint256","indexed":false}]},
  {"type":"event","name":"CardSettled","anonymous":false,"inputs":[{"name":"gameId","type":"uint256","indexed":true},{"name":"cardId","type":"uint256","indexed":true},{"name":"winner","type":"address","indexed":true},{"name":"price","type":"uint256","indexed":false}]},
  {"type":"event","name":"GameFinalized","anonymous":false,"inputs":[{"name":"gameId","type":"uint256","indexed":true},{"name":"winner","type":"address","indexed":true}]}
]`
