package chain

// ABI fragments for the three contracts the portal talks to. Only the
// methods actually called are declared; the on-chain contracts carry more.

const reviewsABI = `[
  {"type":"function","name":"getRequest","stateMutability":"view",
   "inputs":[{"name":"_name","type":"string"}],
   "outputs":[
     {"name":"reviewers","type":"address[]"},
     {"name":"reviewerContracts","type":"address[]"},
     {"name":"hypercertIDs","type":"uint256[]"},
     {"name":"hypercertIPFSHashes","type":"string[]"},
     {"name":"rewardPerReview","type":"uint256"},
     {"name":"paymentTokenAddress","type":"address"},
     {"name":"reviewFormName","type":"string"},
     {"name":"isClosed","type":"bool"}]},
  {"type":"function","name":"getRequestReviewForm","stateMutability":"view",
   "inputs":[{"name":"_name","type":"string"}],
   "outputs":[
     {"name":"questions","type":"string[]"},
     {"name":"choices","type":"string[][]"},
     {"name":"questionTypes","type":"string[]"}]},
  {"type":"function","name":"getReviewForm","stateMutability":"view",
   "inputs":[{"name":"_name","type":"string"}],
   "outputs":[
     {"name":"questions","type":"string[]"},
     {"name":"choices","type":"string[][]"},
     {"name":"questionTypes","type":"string[]"},
     {"name":"systemVersion","type":"uint256"}]},
  {"type":"function","name":"reviewForms","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getReviewRequestsNames","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"string[]"}]},
  {"type":"function","name":"getWhitelistedTokens","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"address[]"}]},
  {"type":"function","name":"isReviewer","stateMutability":"view",
   "inputs":[{"name":"_reviewer","type":"address"},{"name":"_requestName","type":"string"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"reviewsSchemaID","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"amendmentsSchemaID","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"createReviewForm","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_name","type":"string"},
     {"name":"_questions","type":"string[]"},
     {"name":"_choices","type":"string[][]"},
     {"name":"_questionTypes","type":"string[]"}],
   "outputs":[]},
  {"type":"function","name":"createRequest","stateMutability":"payable",
   "inputs":[
     {"name":"_name","type":"string"},
     {"name":"_reviewers","type":"address[]"},
     {"name":"_reviewerContracts","type":"address[]"},
     {"name":"_hypercertIDs","type":"uint256[]"},
     {"name":"_hypercertIPFSHashes","type":"string[]"},
     {"name":"_requestIPFSHash","type":"string"},
     {"name":"_rewardPerReview","type":"uint256"},
     {"name":"_reviewsPerHypercert","type":"uint256"},
     {"name":"_paymentTokenAddress","type":"address"},
     {"name":"_reviewFormName","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"createNonPayableRequest","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_name","type":"string"},
     {"name":"_reviewers","type":"address[]"},
     {"name":"_reviewerContracts","type":"address[]"},
     {"name":"_hypercertIDs","type":"uint256[]"},
     {"name":"_hypercertIPFSHashes","type":"string[]"},
     {"name":"_requestIPFSHash","type":"string"},
     {"name":"_reviewFormName","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"closeReviewRequest","stateMutability":"nonpayable",
   "inputs":[{"name":"_name","type":"string"}],
   "outputs":[]}
]`

const erc20ABI = `[
  {"type":"function","name":"approve","stateMutability":"nonpayable",
   "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]}
]`

const easABI = `[
  {"type":"function","name":"attest","stateMutability":"payable",
   "inputs":[{"name":"request","type":"tuple","components":[
     {"name":"schema","type":"bytes32"},
     {"name":"data","type":"tuple","components":[
       {"name":"recipient","type":"address"},
       {"name":"expirationTime","type":"uint64"},
       {"name":"revocable","type":"bool"},
       {"name":"refUID","type":"bytes32"},
       {"name":"data","type":"bytes"},
       {"name":"value","type":"uint256"}]}]}],
   "outputs":[{"name":"","type":"bytes32"}]}
]`
